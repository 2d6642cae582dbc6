package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/serverdb/internal/value"
)

// Snapshot renders the parts of a result that stay stable across SQL
// rendering changes: per query its name, the understood filters and the
// returned ids. The output is canonical JSON.
func Snapshot(result *Result) ([]byte, error) {
	queries := make([]any, len(result.Queries))
	for i, qr := range result.Queries {
		ids := make([]any, len(qr.SQLIDs))
		for j, id := range qr.SQLIDs {
			ids[j] = id
		}
		queries[i] = map[string]any{
			"name":       qr.Name,
			"understood": qr.Understood,
			"ids":        ids,
		}
	}
	return value.MarshalCanonical(map[string]any{
		"scenario": result.Scenario,
		"queries":  queries,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, nil)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)

	return nil
}
