package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/serverdb/internal/query"
	"github.com/roach88/serverdb/internal/record"
)

// QueryOutput is the JSON payload of the query command.
type QueryOutput struct {
	Understood string           `json:"understood"`
	Count      int              `json:"count"`
	Servers    []*record.Record `json:"servers"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <request>",
		Short: "Run a request against the inventory database",
		Long: `Compile a request and run it against the configured database.

The request is a JSON document, given as a file path, inline text or "-"
for stdin:

  {"filters": {"servertype": "web",
               "tags": {"name": "not", "filter": {"name": "empty"}}},
   "restrict": ["hostname", "tags"]}

Exit codes:
  0 - Query ran (possibly matching no server)
  2 - Command error (bad request, missing schema, database failure)

Examples:
  serverdb query request.json
  serverdb query '{"filters": {"hostname": {"name": "startswith", "value": "web"}}}'
  serverdb query - --format json < request.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runQuery(opts *RootOptions, arg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts)
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

	st, err := openStore(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err)
	}
	defer st.Close()

	eng := query.NewEngine(dir, st.Dialect(), st, query.WithLogger(newLogger(f)))
	plan, err := eng.Compile(req)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRequest, err)
	}
	f.VerboseLog("Understood: %s", plan.Understood)
	f.VerboseLog("SQL: %s", plan.SQL)

	recs, err := eng.Execute(cmd.Context(), plan)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err)
	}

	if opts.Format == "json" {
		if recs == nil {
			recs = []*record.Record{}
		}
		return f.Success(QueryOutput{
			Understood: plan.Understood,
			Count:      len(recs),
			Servers:    recs,
		})
	}

	renderRecords(f.Writer, recs)
	fmt.Fprintf(f.Writer, "%d server(s)\n", len(recs))
	return nil
}

// renderRecords writes one table row per record; the columns are the
// attributes present on any record. Multi-valued attributes are joined
// with commas.
func renderRecords(w io.Writer, recs []*record.Record) {
	if len(recs) == 0 {
		return
	}

	var names []string
	for _, r := range recs {
		names = append(names, r.Names()...)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{"object_id"}, names...))
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, r := range recs {
		row := make([]string, 0, len(names)+1)
		row = append(row, strconv.FormatInt(r.ID(), 10))
		for _, n := range names {
			vals := r.Values(n)
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = v.String()
			}
			row = append(row, strings.Join(parts, ","))
		}
		table.Append(row)
	}
	table.Render()
}
