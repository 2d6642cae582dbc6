package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"   // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/serverdb/internal/query"
	"github.com/roach88/serverdb/internal/querysql"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// fetchChunk bounds the number of server ids bound into one value fetch.
const fetchChunk = 500

// Store runs compiled queries against the server and value tables.
type Store struct {
	db      *sqlx.DB
	driver  string
	dialect querysql.Dialect
	builder goqu.DialectWrapper
}

var _ query.Backend = (*Store)(nil)

// Open opens the SQLite database at path (":memory:" for a private
// in-memory database).
func Open(path string) (*Store, error) {
	return OpenDSN(DriverSQLite, path)
}

// OpenDSN opens a database with the named driver.
//
// SQLite connections are limited to one, which also keeps an in-memory
// database alive for the store's lifetime. MySQL DSNs are validated before
// connecting.
func OpenDSN(driver, dsn string) (*Store, error) {
	var driverName string
	switch driver {
	case DriverSQLite, "sqlite":
		driver, driverName = DriverSQLite, sqliteDriver
	case DriverMySQL:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("invalid mysql DSN: %w", err)
		}
		driverName = DriverMySQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want sqlite3 or mysql)", driver)
	}

	dialect, err := querysql.DialectByName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return &Store{
		db:      db,
		driver:  driver,
		dialect: dialect,
		builder: goqu.Dialect(dialect.Name()),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the SQL dialect compiled queries must use.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Candidates runs a candidate query and returns its rows as driver values.
func (s *Store) Candidates(ctx context.Context, stmt string) ([][]any, error) {
	rows, err := s.db.QueryxContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, cols)
	}
	return out, rows.Err()
}

// FetchValues selects the value rows of ids, optionally limited to keys,
// ordered by server, attribute and value.
func (s *Store) FetchValues(ctx context.Context, ids []int64, keys []int64) ([]query.Triple, error) {
	if keys != nil && len(keys) == 0 {
		return nil, nil
	}
	var out []query.Triple
	for start := 0; start < len(ids); start += fetchChunk {
		end := min(start+fetchChunk, len(ids))

		ds := s.builder.
			From(querysql.ValueTable).
			Select("server_id", "attrib_id", "value").
			Where(goqu.C("server_id").In(ids[start:end])).
			Order(goqu.C("server_id").Asc(), goqu.C("attrib_id").Asc(), goqu.C("value").Asc()).
			Prepared(true)
		if keys != nil {
			ds = ds.Where(goqu.C("attrib_id").In(keys))
		}

		stmt, args, err := ds.ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build value fetch: %w", err)
		}
		var chunk []query.Triple
		if err := s.db.SelectContext(ctx, &chunk, stmt, args...); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// applyPragmas sets the SQLite connection configuration.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
