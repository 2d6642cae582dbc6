// Package match evaluates filters against materialized records.
//
// Evaluation follows the compiled SQL exactly, including its three-valued
// logic: a missing value behaves like NULL, most leaves are UNKNOWN on
// NULL, and a server is selected only when the filter is TRUE for one of
// the rows the SQL join would produce. This keeps the matcher usable as a
// cross-check of the SQL compiler.
package match

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Matcher evaluates filters using attribute metadata from a directory.
type Matcher struct {
	dir *schema.Directory
}

// New creates a matcher over dir.
func New(dir *schema.Directory) *Matcher {
	return &Matcher{dir: dir}
}

// Match reports whether rec satisfies f on the named attribute. f is
// typecast first; raw operands are fine.
func (m *Matcher) Match(rec *record.Record, name string, f filter.Filter) (bool, error) {
	attr, err := m.dir.Lookup(name)
	if err != nil {
		return false, err
	}
	typed, err := filter.Typecast(f, attr)
	if err != nil {
		return false, err
	}
	return Eval(attr, rec.Values(name), typed), nil
}

// MatchAll reports whether rec satisfies every filter of req.
func (m *Matcher) MatchAll(rec *record.Record, req map[string]filter.Filter) (bool, error) {
	for _, name := range sortedNames(req) {
		ok, err := m.Match(rec, name, req[name])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Select returns the ids of the records satisfying every filter of req, in
// input order.
func (m *Matcher) Select(recs []*record.Record, req map[string]filter.Filter) ([]int64, error) {
	var ids []int64
	for _, rec := range recs {
		ok, err := m.MatchAll(rec, req)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, rec.ID())
		}
	}
	return ids, nil
}

// Violation is one attribute filter a record does not satisfy.
type Violation struct {
	Attribute string
	Filter    string
	Values    []value.Value
}

func (v Violation) String() string {
	vals := make([]string, len(v.Values))
	for i, x := range v.Values {
		vals[i] = x.String()
	}
	return fmt.Sprintf("%s: %s does not hold for [%s]", v.Attribute, v.Filter, strings.Join(vals, ", "))
}

// Check validates rec against req and returns the violated filters sorted
// by attribute. Unknown attributes and type mismatches are errors, not
// violations.
func (m *Matcher) Check(rec *record.Record, req map[string]filter.Filter) ([]Violation, error) {
	var out []Violation
	for _, name := range sortedNames(req) {
		ok, err := m.Match(rec, name, req[name])
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, Violation{
				Attribute: name,
				Filter:    filter.Code(req[name]),
				Values:    rec.Values(name),
			})
		}
	}
	return out, nil
}

func sortedNames(req map[string]filter.Filter) []string {
	names := make([]string, 0, len(req))
	for n := range req {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Eval decides a typecast filter for a server whose values of attr are
// rows (empty when absent).
//
// Scalar and inner-joined attributes need a row on which f is TRUE. An
// optional-class filter on a value table attribute is left joined, so a
// server without rows is evaluated once against NULL.
func Eval(attr *schema.Attribute, rows []value.Value, f filter.Filter) bool {
	e := evaluator{attr: attr, rows: rows}

	if len(rows) == 0 && (attr.Scalar() || querysql.IsOptionalClass(attr, f)) {
		return e.eval(f, nil) == True
	}
	for _, v := range rows {
		if e.eval(f, v) == True {
			return true
		}
	}
	return false
}

type evaluator struct {
	attr *schema.Attribute
	rows []value.Value
}

// eval computes the truth of f for one row value; v is nil for NULL.
func (e evaluator) eval(f filter.Filter, v value.Value) Truth {
	switch n := f.(type) {
	case *filter.And:
		t := True
		for _, c := range n.Filters {
			t = t.And(e.eval(c, v))
		}
		return t

	case *filter.Or:
		t := False
		for _, c := range n.Filters {
			t = t.Or(e.eval(c, v))
		}
		return t

	case *filter.Not:
		return e.not(n, v)

	case *filter.Optional:
		if v == nil {
			return True
		}
		return e.eval(n.Filter, v)

	case *filter.Empty:
		return Of(v == nil)

	case *filter.PrivateIP, *filter.PublicIP:
		return e.eval(filter.Expand(f), v)
	}

	if e.attr.Enum != nil {
		return e.enumLeaf(f, v)
	}
	return e.leaf(f, v)
}

// not negates per row for single-valued attributes. On multi-valued
// attributes the negation looks at all of the server's rows: Not(Empty)
// holds when any row exists, otherwise no row may satisfy the child.
func (e evaluator) not(n *filter.Not, v value.Value) Truth {
	child := filter.Expand(n.Filter)

	if e.attr.Multi {
		if _, ok := child.(*filter.Empty); ok {
			return Of(len(e.rows) > 0)
		}
		for _, r := range e.rows {
			if e.eval(child, r) == True {
				return False
			}
		}
		return True
	}

	if em, ok := child.(*filter.ExactMatch); ok && e.attr.Enum == nil {
		if v == nil {
			return Unknown
		}
		return Of(!value.Equal(v, em.Value))
	}
	return e.eval(child, v).Not()
}

func (e evaluator) enumLeaf(f filter.Filter, v value.Value) Truth {
	known := false
	for _, id := range e.attr.Enum.IDs() {
		name, _ := e.attr.Enum.Name(id)
		if filter.Holds(f, value.String(name)) {
			known = true
			break
		}
	}
	if !known {
		return False
	}
	if v == nil {
		return Unknown
	}
	return Of(filter.Holds(f, v))
}

func (e evaluator) leaf(f filter.Filter, v value.Value) Truth {
	switch n := f.(type) {
	case *filter.ExactMatch:
		if b, ok := n.Value.(value.Bool); ok && e.attr.Type == value.TypeBoolean && !bool(b) && v == nil {
			return True
		}

	case *filter.Any:
		if len(n.Values) == 0 {
			return False
		}

	case *filter.Startswith:
		if _, ok := filter.StartswithPrefix(n, e.attr.Type); !ok {
			return False
		}

	case *filter.InsideNetwork:
		return e.insideNetwork(n, v)
	}

	if v == nil {
		return Unknown
	}
	return Of(filter.Holds(f, v))
}

func (e evaluator) insideNetwork(n *filter.InsideNetwork, v value.Value) Truth {
	if !e.attr.Type.IsAddress() {
		return False
	}
	t := False
	for _, p := range n.Networks {
		family := (e.attr.Type == value.TypeIP && p.Addr().Is4()) ||
			(e.attr.Type == value.TypeIP6 && p.Addr().Is6())
		switch {
		case !family:
		case v == nil:
			t = t.Or(Unknown)
		default:
			t = t.Or(Of(filter.Contains(p, v)))
		}
	}
	return t
}
