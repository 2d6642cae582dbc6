package harness

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/serverdb/internal/match"
	"github.com/roach88/serverdb/internal/query"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/store"
)

// Harness holds one seeded inventory.
type Harness struct {
	dir     *schema.Directory
	store   *store.Store
	engine  *query.Engine
	matcher *match.Matcher
	records []*record.Record
	logger  *slog.Logger
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string
	Queries  []QueryResult

	// Pass is true when every query passed all of its checks.
	Pass   bool
	Errors []error
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	Name       string
	Understood string
	SQL        string

	// Restrict is the query's restriction, nil when unrestricted.
	Restrict []string

	// SQLIDs are the ids returned by the compiled query, MatchIDs those
	// selected by the in-memory matcher.
	SQLIDs   []int64
	MatchIDs []int64
	Expect   []int64

	Records []*record.Record
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Every query is
// executed through the SQL engine and through the matcher; a query fails
// when the two disagree, when the ids differ from the expected ones, or
// when a restricted query returns attributes outside its restriction.
func Run(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h, err := newHarness(ctx, scenario, logger)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	result := &Result{Scenario: scenario.Name, Pass: true}
	for _, q := range scenario.Queries {
		qr, err := h.runQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		result.Queries = append(result.Queries, *qr)

		for _, err := range qr.check() {
			result.Pass = false
			result.Errors = append(result.Errors, err)
		}
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"queries", len(result.Queries),
		"pass", result.Pass)
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	dir, err := schema.LoadFile(scenario.Schema)
	if err != nil {
		return nil, err
	}

	records := make([]*record.Record, 0, len(scenario.Servers))
	for _, srv := range scenario.Servers {
		rec, err := record.FromMap(dir, srv.ID, srv.Attributes)
		if err != nil {
			return nil, fmt.Errorf("server %d: %w", srv.ID, err)
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *record.Record) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	if err := st.Migrate(ctx, dir); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.InsertRecords(ctx, dir, records...); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	logger.Debug("inventory seeded", "scenario", scenario.Name, "servers", len(records))

	return &Harness{
		dir:     dir,
		store:   st,
		engine:  query.NewEngine(dir, st.Dialect(), st, query.WithLogger(logger)),
		matcher: match.New(dir),
		records: records,
		logger:  logger,
	}, nil
}

func (h *Harness) runQuery(ctx context.Context, q Query) (*QueryResult, error) {
	req, err := q.Request()
	if err != nil {
		return nil, err
	}

	plan, err := h.engine.Compile(req)
	if err != nil {
		return nil, err
	}
	recs, err := h.engine.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	matched, err := h.matcher.Select(h.records, req.Filters())
	if err != nil {
		return nil, err
	}

	qr := &QueryResult{
		Name:       q.Name,
		Understood: plan.Understood,
		SQL:        plan.SQL,
		Restrict:   req.Restriction(),
		SQLIDs:     make([]int64, 0, len(recs)),
		MatchIDs:   matched,
		Expect:     q.Expect,
		Records:    recs,
	}
	for _, r := range recs {
		qr.SQLIDs = append(qr.SQLIDs, r.ID())
	}
	if qr.MatchIDs == nil {
		qr.MatchIDs = []int64{}
	}
	return qr, nil
}

// check runs the per-query assertions.
func (qr *QueryResult) check() []error {
	var errs []error
	for _, check := range []func(*QueryResult) error{
		assertAgreement,
		assertExpected,
		assertRestricted,
	} {
		if err := check(qr); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
