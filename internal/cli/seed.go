package cli

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/serverdb/internal/record"
)

// SeedOutput is the JSON payload of the seed command.
type SeedOutput struct {
	Database string `json:"database"`
	Servers  int    `json:"servers"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <servers.yaml>",
		Short: "Create and fill a SQLite inventory database",
		Long: `Create the server and value tables in the configured SQLite database
and insert the servers of a YAML file:

  servers:
    - id: 1
      attributes: {hostname: web01, servertype: web, tags: [prod]}

This is a development helper: it takes no locks and keeps no change log.
MySQL databases are refused.

Examples:
  serverdb seed servers.yaml --dsn inventory.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := resolveConfig(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	dir, err := loadDirectory(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSchema, err)
	}
	servers, err := loadServers(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}

	recs := make([]*record.Record, 0, len(servers))
	for _, srv := range servers {
		rec, err := record.FromMap(dir, srv.ID, srv.Attributes)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Errorf("server %d: %w", srv.ID, err))
		}
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *record.Record) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	st, err := openStore(cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, dir); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err)
	}
	if err := st.InsertRecords(ctx, dir, recs...); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, err)
	}
	f.VerboseLog("Seeded %d server(s) into %s", len(recs), cfg.Database.DSN)

	if opts.Format == "json" {
		return f.Success(SeedOutput{Database: cfg.Database.DSN, Servers: len(recs)})
	}
	return f.Success(fmt.Sprintf("✓ seeded %d server(s) into %s", len(recs), cfg.Database.DSN))
}
