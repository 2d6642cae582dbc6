// Command serverdb compiles and runs server inventory requests.
//
// Usage:
//
//	serverdb [--config serverdb.yaml] [--schema attributes.yaml] <command>
//
// Commands:
//   - query: run a request against the configured database
//   - explain: show the SQL a request compiles to
//   - check: validate one server record against a request
//   - seed: create and fill a SQLite inventory
//   - test: run query scenarios
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/serverdb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	code := cli.GetExitCode(err)
	stop()
	os.Exit(code)
}
