package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/serverdb/internal/value"
)

// ParseCode parses the output of Code back into a filter.
// ParseCode(Code(f)) is Equal to f for every filter.
func ParseCode(src string) (Filter, error) {
	p := &codeParser{src: src}
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return f, nil
}

type codeParser struct {
	src string
	pos int
}

func (p *codeParser) errorf(format string, args ...any) error {
	return &Error{
		Code:   ErrCodeInvalidCode,
		Reason: fmt.Sprintf("offset %d: %s", p.pos, fmt.Sprintf(format, args...)),
	}
}

func (p *codeParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *codeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *codeParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

// accept consumes c if it is next.
func (p *codeParser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *codeParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || p.pos > start && c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return "", p.errorf("expected a name")
	}
	return p.src[start:p.pos], nil
}

func (p *codeParser) quoted() (string, error) {
	if p.peek() != '"' {
		return "", p.errorf("expected a string")
	}
	lit, err := strconv.QuotedPrefix(p.src[p.pos:])
	if err != nil {
		return "", p.errorf("bad string literal")
	}
	p.pos += len(lit)
	s, err := strconv.Unquote(lit)
	if err != nil {
		return "", p.errorf("bad string literal")
	}
	return s, nil
}

func (p *codeParser) literal() (value.Value, error) {
	c := p.peek()
	switch {
	case c == '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return value.String(s), nil

	case c == '-' || c >= '0' && c <= '9':
		start := p.pos
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
		if err != nil {
			return nil, p.errorf("bad integer %q", p.src[start:p.pos])
		}
		return value.Int(n), nil
	}

	name, err := p.ident()
	if err != nil {
		return nil, p.errorf("expected a literal")
	}
	switch name {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "IP", "IP6":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		typ := value.TypeIP
		if name == "IP6" {
			typ = value.TypeIP6
		}
		v, err := value.Cast(typ, value.String(s))
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return v, nil
	default:
		return nil, p.errorf("unknown literal %s", name)
	}
}

// list parses comma-separated items up to the closing parenthesis, which
// it consumes.
func (p *codeParser) list(item func() error) error {
	if p.accept(')') {
		return nil
	}
	for {
		if err := item(); err != nil {
			return err
		}
		if p.accept(')') {
			return nil
		}
		if err := p.expect(','); err != nil {
			return err
		}
	}
}

func (p *codeParser) filter() (Filter, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}

	var (
		lits     []value.Value
		children []Filter
		strs     []string
	)
	literals := func() error {
		v, err := p.literal()
		lits = append(lits, v)
		return err
	}
	filters := func() error {
		f, err := p.filter()
		children = append(children, f)
		return err
	}
	stringsArg := func() error {
		s, err := p.quoted()
		strs = append(strs, s)
		return err
	}
	arity := func(got, want int) error {
		if got != want {
			return p.errorf("%s takes %d argument(s), got %d", name, want, got)
		}
		return nil
	}

	switch name {
	case "ExactMatch", "Startswith":
		if err := p.list(literals); err != nil {
			return nil, err
		}
		if err := arity(len(lits), 1); err != nil {
			return nil, err
		}
		if name == "ExactMatch" {
			return NewExactMatch(lits[0]), nil
		}
		return NewStartswith(lits[0]), nil

	case "Between":
		if err := p.list(literals); err != nil {
			return nil, err
		}
		if err := arity(len(lits), 2); err != nil {
			return nil, err
		}
		return NewBetween(lits[0], lits[1]), nil

	case "Any":
		if err := p.list(literals); err != nil {
			return nil, err
		}
		return NewAny(lits...), nil

	case "Regexp":
		if err := p.list(stringsArg); err != nil {
			return nil, err
		}
		if err := arity(len(strs), 1); err != nil {
			return nil, err
		}
		r, err := NewRegexp(strs[0])
		if err != nil {
			return nil, err
		}
		return r, nil

	case "Comparison":
		op, err := p.quoted()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		if err := p.list(literals); err != nil {
			return nil, err
		}
		if err := arity(len(lits)+1, 2); err != nil {
			return nil, err
		}
		c, err := NewComparison(op, lits[0])
		if err != nil {
			return nil, err
		}
		return c, nil

	case "InsideNetwork":
		if err := p.list(stringsArg); err != nil {
			return nil, err
		}
		in, err := NewInsideNetwork(strs...)
		if err != nil {
			return nil, err
		}
		return in, nil

	case "And", "Or":
		if err := p.list(filters); err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, &Error{Code: ErrCodeEmptyCombinator, Filter: strings.ToLower(name), Reason: "needs at least one filter"}
		}
		if name == "And" {
			return &And{Filters: children}, nil
		}
		return &Or{Filters: children}, nil

	case "Not", "Optional":
		if err := p.list(filters); err != nil {
			return nil, err
		}
		if err := arity(len(children), 1); err != nil {
			return nil, err
		}
		if name == "Not" {
			return NewNot(children[0]), nil
		}
		return NewOptional(children[0]), nil

	case "PrivateIP", "PublicIP", "Empty":
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		switch name {
		case "PrivateIP":
			return &PrivateIP{}, nil
		case "PublicIP":
			return &PublicIP{}, nil
		}
		return &Empty{}, nil

	default:
		return nil, p.errorf("unknown filter %s", name)
	}
}
