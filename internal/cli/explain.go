package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/serverdb/internal/query"
)

// ExplainOutput is the JSON payload of the explain command.
type ExplainOutput struct {
	Understood string        `json:"understood"`
	Dialect    string        `json:"dialect"`
	SQL        string        `json:"sql"`
	Joins      []ExplainJoin `json:"joins"`
	Columns    []string      `json:"columns"`
	Fetch      bool          `json:"fetch"`
	FetchKeys  []int64       `json:"fetch_keys,omitempty"`
}

// ExplainJoin describes how one attribute filter was compiled.
type ExplainJoin struct {
	Attribute string `json:"attribute"`
	Kind      string `json:"kind"`
	Alias     string `json:"alias,omitempty"`
	Where     string `json:"where"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <request>",
		Short: "Show the SQL a request compiles to",
		Long: `Compile a request without running it.

Prints the typecast filters, the candidate statement and the join chosen
for every attribute. No database connection is made; the dialect comes
from the dialect setting or the configured driver.

Examples:
  serverdb explain request.json
  serverdb explain '{"filters": {"os": {"name": "empty"}}}' --driver mysql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, arg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	dialect, err := cfg.ResolvedDialect()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	dir, err := loadDirectory(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, err)
	}
	req, err := loadRequest(arg, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRequest, err)
	}

	plan, err := query.Compile(dir, dialect, req)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRequest, err)
	}

	out := ExplainOutput{
		Understood: plan.Understood,
		Dialect:    dialect.Name(),
		SQL:        plan.SQL,
		Joins:      make([]ExplainJoin, 0, len(plan.Clauses)),
		Columns:    make([]string, 0, len(plan.Scalars)),
		Fetch:      plan.Fetch,
		FetchKeys:  plan.FetchKeys,
	}
	for _, name := range req.Names() {
		c := plan.Clauses[name]
		out.Joins = append(out.Joins, ExplainJoin{
			Attribute: name,
			Kind:      c.Kind.String(),
			Alias:     c.Alias,
			Where:     c.Where,
		})
	}
	for _, a := range plan.Scalars {
		out.Columns = append(out.Columns, a.Column)
	}

	if opts.Format == "json" {
		return f.Success(out)
	}
	return f.Success(out.text())
}

func (e ExplainOutput) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Understood: %s\n", e.Understood)
	fmt.Fprintf(&b, "Dialect: %s\n", e.Dialect)
	fmt.Fprintf(&b, "SQL:\n  %s\n", e.SQL)
	if len(e.Joins) > 0 {
		b.WriteString("Attributes:\n")
		for _, j := range e.Joins {
			alias := ""
			if j.Alias != "" {
				alias = " " + j.Alias
			}
			fmt.Fprintf(&b, "  %s: %s%s WHERE %s\n", j.Attribute, j.Kind, alias, j.Where)
		}
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(e.Columns, ", "))

	switch {
	case !e.Fetch:
		b.WriteString("Fetch: none")
	case e.FetchKeys == nil:
		b.WriteString("Fetch: all attributes")
	default:
		parts := make([]string, len(e.FetchKeys))
		for i, k := range e.FetchKeys {
			parts[i] = fmt.Sprint(k)
		}
		fmt.Fprintf(&b, "Fetch: keys %s", strings.Join(parts, ", "))
	}
	return b.String()
}
