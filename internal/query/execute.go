package query

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Triple is one value table row.
type Triple struct {
	ServerID int64  `db:"server_id"`
	AttribID int64  `db:"attrib_id"`
	Value    string `db:"value"`
}

// Backend runs the two read statements of a query. Neither call is
// retried; errors abort the query.
type Backend interface {
	// Candidates runs a compiled candidate query and returns its rows:
	// server id first, then the plan's scalar columns. NULL is nil.
	Candidates(ctx context.Context, stmt string) ([][]any, error)

	// FetchValues returns the value rows of the given servers, limited to
	// keys unless keys is nil.
	FetchValues(ctx context.Context, ids []int64, keys []int64) ([]Triple, error)
}

// Engine compiles and executes requests against a backend.
type Engine struct {
	dir     *schema.Directory
	dialect querysql.Dialect
	backend Backend
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine.
func NewEngine(dir *schema.Directory, d querysql.Dialect, backend Backend, opts ...Option) *Engine {
	e := &Engine{dir: dir, dialect: d, backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile compiles req for the engine's dialect.
func (e *Engine) Compile(req *Request) (*Plan, error) {
	return Compile(e.dir, e.dialect, req)
}

// Query compiles and executes req. Records are ordered by server id.
func (e *Engine) Query(ctx context.Context, req *Request) ([]*record.Record, error) {
	plan, err := e.Compile(req)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// Execute runs plan's candidate query, then fetches value rows for the
// candidates unless the plan needs none. The two statements are not
// isolated from concurrent writes.
func (e *Engine) Execute(ctx context.Context, plan *Plan) ([]*record.Record, error) {
	start := time.Now()
	logger := e.logger.With("query_id", newQueryID())
	logger.Debug("query compiled", "sql", plan.SQL, "attributes", len(plan.Clauses))

	rows, err := e.backend.Candidates(ctx, plan.SQL)
	if err != nil {
		return nil, fmt.Errorf("candidate query: %w", err)
	}
	logger.Debug("candidates fetched", "count", len(rows))

	ids := make([]int64, 0, len(rows))
	builders := make(map[int64]*record.Builder, len(rows))
	for _, row := range rows {
		b, id, err := e.scalarRow(plan, row)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		builders[id] = b
	}

	if len(ids) > 0 && plan.Fetch {
		triples, err := e.backend.FetchValues(ctx, ids, plan.FetchKeys)
		if err != nil {
			return nil, fmt.Errorf("fetch values: %w", err)
		}
		for _, t := range triples {
			if err := e.addTriple(builders, t); err != nil {
				return nil, err
			}
		}
	}

	out := make([]*record.Record, len(ids))
	for i, id := range ids {
		out[i] = builders[id].Build()
	}
	logger.Info("records built", "count", len(out), "duration", time.Since(start))
	return out, nil
}

func (e *Engine) scalarRow(plan *Plan, row []any) (*record.Builder, int64, error) {
	if len(row) != len(plan.Scalars)+1 {
		return nil, 0, fmt.Errorf("candidate row has %d columns, want %d", len(row), len(plan.Scalars)+1)
	}
	idText, ok := columnText(row[0])
	if !ok {
		return nil, 0, fmt.Errorf("candidate row without server id")
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("server id %q: %w", idText, err)
	}

	b := record.NewBuilder(id)
	for i, attr := range plan.Scalars {
		text, ok := columnText(row[i+1])
		if !ok {
			continue
		}
		v, err := scalarValue(attr, text)
		if err != nil {
			return nil, 0, fmt.Errorf("server %d: %w", id, err)
		}
		b.Set(attr.Name, v)
	}
	return b, id, nil
}

// scalarValue decodes a scalar column; enum columns hold ids.
func scalarValue(attr *schema.Attribute, text string) (value.Value, error) {
	if attr.Enum == nil {
		v, err := value.ParseStored(attr.Type, text)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		return v, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: enum id %q: %w", attr.Name, text, err)
	}
	name, ok := attr.Enum.Name(id)
	if !ok {
		return nil, fmt.Errorf("attribute %q: unknown enum id %d", attr.Name, id)
	}
	return value.String(name), nil
}

func (e *Engine) addTriple(builders map[int64]*record.Builder, t Triple) error {
	b, ok := builders[t.ServerID]
	if !ok {
		return nil
	}
	attr, ok := e.dir.ByKey(t.AttribID)
	if !ok {
		e.logger.Warn("value row for unknown attribute key", "server_id", t.ServerID, "attrib_id", t.AttribID)
		return nil
	}
	v, err := value.ParseStored(attr.Type, t.Value)
	if err != nil {
		return fmt.Errorf("server %d: attribute %q: %w", t.ServerID, attr.Name, err)
	}
	if attr.Multi {
		b.Add(attr.Name, v)
	} else {
		b.Set(attr.Name, v)
	}
	return nil
}

// columnText renders a driver value as text. ok is false for NULL.
func columnText(x any) (string, bool) {
	switch v := x.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	default:
		return fmt.Sprint(v), true
	}
}

func newQueryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
