// Package querysql compiles one (attribute, filter) pair into a boolean SQL
// fragment over the fixed two-table layout: the server table with its
// scalar columns and the generic attrib_values table.
//
// Fragments are built as strings. Every operand passes through Literal and
// every string literal through Dialect.Quote; column names come only from
// the schema directory, which restricts them to plain identifiers.
package querysql

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

const (
	// ServerTable holds one row per server and the scalar columns.
	ServerTable = "admin_server"

	// ServerAlias is the alias of ServerTable in every statement.
	ServerAlias = "adms"

	// ValueTable holds EAV rows (server_id, attrib_id, value).
	ValueTable = "attrib_values"

	// never is the always-false predicate.
	never = "0=1"
)

// JoinContext allocates join and subquery aliases for one compilation.
// It must not be shared between compilations.
type JoinContext struct {
	next int
}

// NewJoinContext returns a context whose first alias number is 0.
func NewJoinContext() *JoinContext {
	return &JoinContext{}
}

// Next returns a fresh alias number.
func (jc *JoinContext) Next() int {
	n := jc.next
	jc.next++
	return n
}

// JoinKind says how an attribute's value rows are joined.
type JoinKind int

const (
	// JoinNone means the attribute is a server table column.
	JoinNone JoinKind = iota
	// JoinInner requires a value row to exist.
	JoinInner
	// JoinLeft keeps servers without a value row.
	JoinLeft
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	default:
		return "NONE"
	}
}

// Clause is the compiled form of one attribute filter.
type Clause struct {
	Kind JoinKind

	// Alias and On describe the value table join; empty for JoinNone.
	Alias string
	On    string

	// Where is the boolean fragment to AND into the statement's WHERE.
	Where string
}

// Compiler renders filters for one dialect.
type Compiler struct {
	dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile compiles a typecast filter for attr.
//
// Scalar attributes reference their column directly. EAV attributes get
// a value table join keyed on server id and attribute key: an inner join
// for ordinary filters, a left join for optional-class ones so servers
// without a value row survive. In both cases the fragment goes to WHERE;
// inside a left join's ON it would never remove a server.
func (c *Compiler) Compile(jc *JoinContext, attr *schema.Attribute, f filter.Filter) (Clause, error) {
	if attr.Scalar() {
		where, err := c.Fragment(jc, attr, f, ServerAlias+"."+attr.Column)
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: JoinNone, Where: where}, nil
	}

	alias := fmt.Sprintf("av%d", jc.Next())
	clause := Clause{
		Kind:  JoinInner,
		Alias: alias,
		On:    valueRowCondition(alias, attr),
	}
	if IsOptionalClass(attr, f) {
		clause.Kind = JoinLeft
	}

	where, err := c.Fragment(jc, attr, f, alias+".value")
	if err != nil {
		return Clause{}, err
	}
	clause.Where = where
	return clause, nil
}

// IsOptionalClass reports whether f can hold for a server that has no value
// for attr: Optional, Empty, a Not wrapping one of those, and
// ExactMatch(false) on a boolean attribute, since absence means false. An
// Or is optional-class when any child is, an And when every child is.
func IsOptionalClass(attr *schema.Attribute, f filter.Filter) bool {
	switch n := f.(type) {
	case *filter.Optional, *filter.Empty:
		return true
	case *filter.Not:
		return IsOptionalClass(attr, n.Filter)
	case *filter.Or:
		return slices.ContainsFunc(n.Filters, func(c filter.Filter) bool {
			return IsOptionalClass(attr, c)
		})
	case *filter.And:
		if len(n.Filters) == 0 {
			return false
		}
		for _, c := range n.Filters {
			if !IsOptionalClass(attr, c) {
				return false
			}
		}
		return true
	case *filter.ExactMatch:
		return isFalse(attr, n.Value)
	default:
		return false
	}
}

func isFalse(attr *schema.Attribute, v value.Value) bool {
	b, ok := v.(value.Bool)
	return ok && attr.Type == value.TypeBoolean && !bool(b)
}

func valueRowCondition(alias string, attr *schema.Attribute) string {
	return fmt.Sprintf("%s.server_id = %s.server_id AND %s.attrib_id = %d",
		alias, ServerAlias, alias, attr.Key)
}

// Fragment compiles f against field, which holds the attribute's value
// (NULL when absent).
func (c *Compiler) Fragment(jc *JoinContext, attr *schema.Attribute, f filter.Filter, field string) (string, error) {
	switch n := f.(type) {
	case *filter.And:
		return c.combine(jc, attr, n.Filters, field, " AND ")
	case *filter.Or:
		return c.combine(jc, attr, n.Filters, field, " OR ")
	case *filter.Not:
		return c.not(jc, attr, n, field)
	case *filter.Optional:
		inner, err := c.Fragment(jc, attr, n.Filter, field)
		if err != nil {
			return "", err
		}
		return "(" + field + " IS NULL OR " + inner + ")", nil
	case *filter.Empty:
		return field + " IS NULL", nil
	case *filter.PrivateIP, *filter.PublicIP:
		return c.Fragment(jc, attr, filter.Expand(f), field)
	case nil:
		return "", fmt.Errorf("compile %s: nil filter", attr.Name)
	}

	if attr.Enum != nil {
		return c.enumLeaf(attr, f, field), nil
	}
	return c.leaf(attr, f, field)
}

func (c *Compiler) combine(jc *JoinContext, attr *schema.Attribute, fs []filter.Filter, field, op string) (string, error) {
	if len(fs) == 0 {
		return "", &filter.Error{Code: filter.ErrCodeEmptyCombinator, Reason: "needs at least one filter"}
	}
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		p, err := c.Fragment(jc, attr, f, field)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

// not negates a fragment. On multi-valued attributes a positive fragment
// means "some row satisfies", so the negation is a correlated NOT EXISTS
// over the attribute's rows; Not(Empty) becomes EXISTS of any row.
func (c *Compiler) not(jc *JoinContext, attr *schema.Attribute, n *filter.Not, field string) (string, error) {
	child := filter.Expand(n.Filter)

	if attr.Multi {
		alias := fmt.Sprintf("nav%d", jc.Next())
		if _, ok := child.(*filter.Empty); ok {
			return fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s)",
				ValueTable, alias, valueRowCondition(alias, attr)), nil
		}
		cond, err := c.Fragment(jc, attr, child, alias+".value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AS %s WHERE %s AND %s)",
			ValueTable, alias, cond, valueRowCondition(alias, attr)), nil
	}

	if em, ok := child.(*filter.ExactMatch); ok && attr.Enum == nil {
		return field + " != " + Literal(c.dialect, em.Value), nil
	}
	inner, err := c.Fragment(jc, attr, child, field)
	if err != nil {
		return "", err
	}
	return "NOT (" + inner + ")", nil
}

// enumLeaf resolves a leaf on an enum-backed column to the ids whose name
// satisfies it.
func (c *Compiler) enumLeaf(attr *schema.Attribute, f filter.Filter, field string) string {
	var ids []string
	for _, id := range attr.Enum.IDs() {
		name, _ := attr.Enum.Name(id)
		if filter.Holds(f, value.String(name)) {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
	}
	if len(ids) == 0 {
		return never
	}
	return field + " IN (" + strings.Join(ids, ", ") + ")"
}

func (c *Compiler) leaf(attr *schema.Attribute, f filter.Filter, field string) (string, error) {
	d := c.dialect

	switch n := f.(type) {
	case *filter.ExactMatch:
		if isFalse(attr, n.Value) {
			return "(" + field + " = '0' OR " + field + " IS NULL)", nil
		}
		return field + " = " + Literal(d, n.Value), nil

	case *filter.Regexp:
		return d.Regexp(c.textField(attr, field), n.Pattern), nil

	case *filter.Comparison:
		return field + " " + n.Op + " " + Literal(d, n.Value), nil

	case *filter.Any:
		if len(n.Values) == 0 {
			return never, nil
		}
		lits := make([]string, len(n.Values))
		for i, v := range n.Values {
			lits[i] = Literal(d, v)
		}
		return field + " IN (" + strings.Join(lits, ", ") + ")", nil

	case *filter.Between:
		return field + " BETWEEN " + Literal(d, n.A) + " AND " + Literal(d, n.B), nil

	case *filter.Startswith:
		prefix, ok := filter.StartswithPrefix(n, attr.Type)
		if !ok {
			return never, nil
		}
		return d.Like(c.textField(attr, field), EscapeLike(prefix)+"%"), nil

	case *filter.InsideNetwork:
		return c.insideNetwork(attr, n, field), nil

	default:
		return "", fmt.Errorf("compile %s: unsupported filter %T", attr.Name, f)
	}
}

// textField is the expression whose text Regexp and Startswith inspect.
func (c *Compiler) textField(attr *schema.Attribute, field string) string {
	switch attr.Type {
	case value.TypeIP:
		return c.dialect.AddrToString(field)
	case value.TypeIP6:
		return c.dialect.Addr6ToString(field)
	default:
		return field
	}
}

func (c *Compiler) insideNetwork(attr *schema.Attribute, n *filter.InsideNetwork, field string) string {
	if !attr.Type.IsAddress() {
		return never
	}
	parts := make([]string, 0, len(n.Networks))
	for _, p := range n.Networks {
		first, last := filter.Range(p)
		switch {
		case attr.Type == value.TypeIP && p.Addr().Is4():
			parts = append(parts, field+" BETWEEN "+
				Literal(c.dialect, value.IP(first))+" AND "+Literal(c.dialect, value.IP(last)))
		case attr.Type == value.TypeIP6 && p.Addr().Is6():
			parts = append(parts, field+" BETWEEN "+
				Literal(c.dialect, value.IP6(first))+" AND "+Literal(c.dialect, value.IP6(last)))
		default:
			parts = append(parts, never)
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Literal renders a typed value as it is stored: strings quoted, integers
// in decimal, booleans as '1'/'0', IPv4 as its unsigned integer and IPv6
// as quoted hex.
func Literal(d Dialect, v value.Value) string {
	switch x := v.(type) {
	case value.String:
		return d.Quote(string(x))
	case value.Int:
		return strconv.FormatInt(int64(x), 10)
	case value.Bool:
		if x {
			return "'1'"
		}
		return "'0'"
	case value.IP:
		return strconv.FormatUint(uint64(x.Uint32()), 10)
	case value.IP6:
		return d.Quote(x.Hex())
	default:
		return "NULL"
	}
}
