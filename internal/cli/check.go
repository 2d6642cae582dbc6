package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/serverdb/internal/match"
	"github.com/roach88/serverdb/internal/record"
)

// CheckOutput is the JSON payload of the check command.
type CheckOutput struct {
	ServerID   int64            `json:"server_id"`
	Pass       bool             `json:"pass"`
	Violations []CheckViolation `json:"violations"`
}

// CheckViolation is one filter the server does not satisfy.
type CheckViolation struct {
	Attribute string   `json:"attribute"`
	Filter    string   `json:"filter"`
	Values    []string `json:"values"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <server> <request>",
		Short: "Validate a server record against a request",
		Long: `Evaluate a request against one server record in memory.

The server is a YAML or JSON document with an id and its attributes:

  id: 7
  attributes: {hostname: web07, servertype: web, tags: [prod]}

Every filter of the request is evaluated with the same semantics as the
compiled SQL. No database connection is made.

Exit codes:
  0 - The server satisfies every filter
  1 - One or more filters do not hold
  2 - Command error (bad request, bad server document, missing schema)

Examples:
  serverdb check server.yaml request.json
  serverdb check - request.json < server.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, serverArg, requestArg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	dir, err := loadDirectory(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, err)
	}
	srv, err := loadServer(serverArg, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}
	rec, err := record.FromMap(dir, srv.ID, srv.Attributes)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}
	req, err := loadRequest(requestArg, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRequest, err)
	}

	violations, err := match.New(dir).Check(rec, req.Filters())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRequest, err)
	}

	out := CheckOutput{
		ServerID:   rec.ID(),
		Pass:       len(violations) == 0,
		Violations: make([]CheckViolation, 0, len(violations)),
	}
	for _, v := range violations {
		vals := make([]string, len(v.Values))
		for i, x := range v.Values {
			vals[i] = x.String()
		}
		out.Violations = append(out.Violations, CheckViolation{
			Attribute: v.Attribute,
			Filter:    v.Filter,
			Values:    vals,
		})
	}

	if opts.Format == "json" {
		if out.Pass {
			return f.Success(out)
		}
		if err := f.encode(CLIResponse{
			Status:  "error",
			Data:    out,
			Error:   &CLIError{Code: ErrCodeViolation, Message: fmt.Sprintf("%d filter(s) do not hold", len(violations))},
			TraceID: f.TraceID,
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d filter(s) do not hold", len(violations)))
	}

	w := f.Writer
	if out.Pass {
		fmt.Fprintf(w, "✓ server %d satisfies %d filter(s)\n", rec.ID(), len(req.Names()))
		return nil
	}
	fmt.Fprintf(w, "✗ server %d\n", rec.ID())
	for _, v := range violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d filter(s) do not hold", len(violations)))
}
