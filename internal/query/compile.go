package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"   // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/schema"
)

const colServerID = "server_id"

// Plan is a compiled request.
type Plan struct {
	// SQL selects the candidate server ids followed by the Scalars
	// columns, one row per server, ordered by id.
	SQL string

	// Scalars are the projected scalar attributes in column order.
	Scalars []*schema.Attribute

	// Fetch says whether value rows must be fetched after the candidate
	// query. FetchKeys limits the fetch to those attribute keys; nil
	// fetches every key.
	Fetch     bool
	FetchKeys []int64

	// Clauses are the compiled attribute filters, by attribute name.
	Clauses map[string]querysql.Clause

	// Understood is the request as attr=Code(filter) pairs after
	// typecasting.
	Understood string
}

// Compile typecasts every filter of req and assembles the candidate query
// for dialect d. Attributes are compiled in name order, so the same
// request always yields the same statement.
func Compile(dir *schema.Directory, d querysql.Dialect, req *Request) (*Plan, error) {
	compiler := querysql.NewCompiler(d)
	jc := querysql.NewJoinContext()

	ds := goqu.Dialect(d.Name()).
		From(goqu.T(querysql.ServerTable).As(querysql.ServerAlias))

	plan := &Plan{Clauses: make(map[string]querysql.Clause)}
	var (
		where      []exp.Expression
		understood []string
	)
	for _, name := range req.Names() {
		f, _ := req.Filter(name)
		attr, err := dir.Lookup(name)
		if err != nil {
			return nil, err
		}
		typed, err := filter.Typecast(f, attr)
		if err != nil {
			return nil, err
		}
		clause, err := compiler.Compile(jc, attr, typed)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		plan.Clauses[name] = clause
		understood = append(understood, name+"="+filter.Code(typed))

		table := goqu.T(querysql.ValueTable).As(clause.Alias)
		switch clause.Kind {
		case querysql.JoinInner:
			ds = ds.Join(table, goqu.On(goqu.L(clause.On)))
		case querysql.JoinLeft:
			ds = ds.LeftJoin(table, goqu.On(goqu.L(clause.On)))
		}
		where = append(where, goqu.L("("+clause.Where+")"))
	}
	plan.Understood = strings.Join(understood, " ")

	if err := plan.project(dir, req.Restriction()); err != nil {
		return nil, err
	}

	cols := []any{goqu.I(querysql.ServerAlias + "." + colServerID)}
	for _, a := range plan.Scalars {
		cols = append(cols, goqu.I(querysql.ServerAlias+"."+a.Column))
	}
	ds = ds.Select(cols...)
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	ds = ds.GroupBy(goqu.I(querysql.ServerAlias + "." + colServerID)).
		Order(goqu.I(querysql.ServerAlias + "." + colServerID).Asc())

	sql, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build candidate query: %w", err)
	}
	plan.SQL = sql
	return plan, nil
}

// project resolves the restriction into scalar columns and value keys. An
// empty restriction projects every attribute; one made only of scalar
// attributes needs no fetch.
func (p *Plan) project(dir *schema.Directory, restrict []string) error {
	if len(restrict) == 0 {
		p.Scalars = dir.Scalars()
		p.Fetch = true
		return nil
	}
	for _, name := range restrict {
		attr, err := dir.Lookup(name)
		if err != nil {
			return err
		}
		if attr.Scalar() {
			p.Scalars = append(p.Scalars, attr)
		} else {
			p.FetchKeys = append(p.FetchKeys, attr.Key)
		}
	}
	slices.SortFunc(p.Scalars, func(a, b *schema.Attribute) int {
		return strings.Compare(a.Name, b.Name)
	})
	slices.Sort(p.FetchKeys)
	p.Fetch = len(p.FetchKeys) > 0
	return nil
}
