// Package filter is the predicate algebra over server attributes.
//
// Filter is a sealed interface: only the variants in this package
// implement it, so every consumer (SQL compiler, matcher, typecast, wire
// codecs, canonical text) is an exhaustive type switch.
//
// Operands are raw until Typecast runs for a concrete attribute; after
// that every operand has the attribute's native kind. Trees are never
// mutated in place: Typecast and Expand return new trees.
package filter

import (
	"fmt"
	"net/netip"
	"regexp"

	"github.com/roach88/serverdb/internal/value"
)

// Filter is a predicate over one attribute.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// ExactMatch holds when the attribute equals Value.
type ExactMatch struct {
	Value value.Value
}

// Regexp holds when the textual form of the attribute matches Pattern.
// Build with NewRegexp so the pattern is validated.
type Regexp struct {
	Pattern string
	re      *regexp.Regexp
}

// Comparison holds when `attribute Op Value` is true.
type Comparison struct {
	Op    string
	Value value.Value
}

// Any holds when the attribute equals one of Values.
// NewAny dedupes and sorts Values. An empty Any matches nothing.
type Any struct {
	Values []value.Value
}

// And holds when every child holds. Never empty.
type And struct {
	Filters []Filter
}

// Or holds when some child holds. Never empty.
type Or struct {
	Filters []Filter
}

// Between holds when A <= attribute <= B.
type Between struct {
	A value.Value
	B value.Value
}

// Not negates its child. On multi-valued attributes it means "no value
// satisfies the child".
type Not struct {
	Filter Filter
}

// Startswith holds when the textual form of the attribute starts with Value.
type Startswith struct {
	Value value.Value
}

// InsideNetwork holds when the address lies inside one of Networks.
type InsideNetwork struct {
	Networks []netip.Prefix
}

// PrivateIP is InsideNetwork over the RFC 1918 blocks.
type PrivateIP struct{}

// PublicIP is Not(PrivateIP).
type PublicIP struct{}

// Optional holds when the attribute is absent, or present and the child holds.
type Optional struct {
	Filter Filter
}

// Empty holds when the attribute has no value.
type Empty struct{}

func (*ExactMatch) filterNode()    {}
func (*Regexp) filterNode()        {}
func (*Comparison) filterNode()    {}
func (*Any) filterNode()           {}
func (*And) filterNode()           {}
func (*Or) filterNode()            {}
func (*Between) filterNode()       {}
func (*Not) filterNode()           {}
func (*Startswith) filterNode()    {}
func (*InsideNetwork) filterNode() {}
func (*PrivateIP) filterNode()     {}
func (*PublicIP) filterNode()      {}
func (*Optional) filterNode()      {}
func (*Empty) filterNode()         {}

// PrivateBlocks are the RFC 1918 networks.
var PrivateBlocks = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Comparators lists the operators Comparison accepts.
var Comparators = []string{"<", ">", "<=", ">="}

// NewExactMatch builds an ExactMatch.
func NewExactMatch(v value.Value) *ExactMatch {
	return &ExactMatch{Value: v}
}

// NewRegexp compiles pattern. Bad syntax fails with INVALID_PATTERN.
func NewRegexp(pattern string) (*Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidPattern, Filter: "regexp", Reason: err.Error(), Err: err}
	}
	return &Regexp{Pattern: pattern, re: re}, nil
}

// MustRegexp is NewRegexp for literal patterns; it panics on error.
func MustRegexp(pattern string) *Regexp {
	r, err := NewRegexp(pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// MatchString reports whether s contains a match of the pattern.
// A Regexp built without NewRegexp is compiled on each call and panics on
// an invalid pattern; Typecast rejects such patterns first.
func (r *Regexp) MatchString(s string) bool {
	re := r.re
	if re == nil {
		re = regexp.MustCompile(r.Pattern)
	}
	return re.MatchString(s)
}

// NewComparison validates op. Anything outside Comparators fails with
// INVALID_OPERATOR.
func NewComparison(op string, v value.Value) (*Comparison, error) {
	if !validComparator(op) {
		return nil, &Error{
			Code:   ErrCodeInvalidOperator,
			Filter: "comparison",
			Reason: fmt.Sprintf("operator %q not in %v", op, Comparators),
		}
	}
	return &Comparison{Op: op, Value: v}, nil
}

func validComparator(op string) bool {
	for _, c := range Comparators {
		if c == op {
			return true
		}
	}
	return false
}

// NewAny builds an Any with duplicates removed and values in Order.
func NewAny(vals ...value.Value) *Any {
	return &Any{Values: value.NewSet(vals...).Values()}
}

// NewAnd builds a conjunction. Zero children fail with EMPTY_COMBINATOR.
func NewAnd(fs ...Filter) (*And, error) {
	if len(fs) == 0 {
		return nil, &Error{Code: ErrCodeEmptyCombinator, Filter: "and", Reason: "needs at least one filter"}
	}
	return &And{Filters: fs}, nil
}

// NewOr builds a disjunction. Zero children fail with EMPTY_COMBINATOR.
func NewOr(fs ...Filter) (*Or, error) {
	if len(fs) == 0 {
		return nil, &Error{Code: ErrCodeEmptyCombinator, Filter: "or", Reason: "needs at least one filter"}
	}
	return &Or{Filters: fs}, nil
}

// NewBetween builds an inclusive range.
func NewBetween(a, b value.Value) *Between {
	return &Between{A: a, B: b}
}

// NewNot negates f.
func NewNot(f Filter) *Not {
	return &Not{Filter: f}
}

// NewStartswith builds a prefix filter.
func NewStartswith(v value.Value) *Startswith {
	return &Startswith{Value: v}
}

// NewInsideNetwork parses CIDR networks. Host bits must be zero and at
// least one network is required; violations fail with INVALID_NETWORK.
func NewInsideNetwork(networks ...string) (*InsideNetwork, error) {
	if len(networks) == 0 {
		return nil, &Error{Code: ErrCodeInvalidNetwork, Filter: "insidenetwork", Reason: "needs at least one network"}
	}
	prefixes := make([]netip.Prefix, 0, len(networks))
	for _, n := range networks {
		p, err := netip.ParsePrefix(n)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidNetwork, Filter: "insidenetwork", Reason: err.Error(), Err: err}
		}
		if p != p.Masked() {
			return nil, &Error{
				Code:   ErrCodeInvalidNetwork,
				Filter: "insidenetwork",
				Reason: fmt.Sprintf("%s has host bits set", n),
			}
		}
		prefixes = append(prefixes, p)
	}
	return &InsideNetwork{Networks: prefixes}, nil
}

// MustInsideNetwork is NewInsideNetwork for literal networks; it panics on error.
func MustInsideNetwork(networks ...string) *InsideNetwork {
	f, err := NewInsideNetwork(networks...)
	if err != nil {
		panic(err)
	}
	return f
}

// NewOptional wraps f.
func NewOptional(f Filter) *Optional {
	return &Optional{Filter: f}
}

// Expand replaces the PrivateIP and PublicIP shorthands by their
// definitions, recursively. Other nodes are shared with the input.
func Expand(f Filter) Filter {
	switch n := f.(type) {
	case *PrivateIP:
		return &InsideNetwork{Networks: PrivateBlocks}
	case *PublicIP:
		return &Not{Filter: &InsideNetwork{Networks: PrivateBlocks}}
	case *And:
		return &And{Filters: expandAll(n.Filters)}
	case *Or:
		return &Or{Filters: expandAll(n.Filters)}
	case *Not:
		return &Not{Filter: Expand(n.Filter)}
	case *Optional:
		return &Optional{Filter: Expand(n.Filter)}
	default:
		return f
	}
}

func expandAll(fs []Filter) []Filter {
	out := make([]Filter, len(fs))
	for i, f := range fs {
		out[i] = Expand(f)
	}
	return out
}

// Prepare turns a request value into a filter: filters pass through, wire
// objects are decoded, and any other literal becomes ExactMatch.
func Prepare(x any) (Filter, error) {
	switch v := x.(type) {
	case Filter:
		return v, nil
	case map[string]any:
		return FromObject(v)
	default:
		lit, err := value.FromLiteral(x)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidFilterObject, Filter: "exactmatch", Reason: err.Error(), Err: err}
		}
		return NewExactMatch(lit), nil
	}
}
