package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/roach88/serverdb/internal/querysql"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Migrate creates the server table with one column per scalar attribute of
// dir, plus the value table. SQLite only: columns are declared without a
// type so stored values keep the storage class Stored gives them.
func (s *Store) Migrate(ctx context.Context, dir *schema.Directory) error {
	if s.driver != DriverSQLite {
		return fmt.Errorf("migrate: fixture tables are only created on %s, not %s", DriverSQLite, s.driver)
	}

	cols := []string{"server_id INTEGER PRIMARY KEY"}
	for _, a := range dir.Scalars() {
		cols = append(cols, a.Column)
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", querysql.ServerTable, strings.Join(cols, ", ")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			server_id INTEGER NOT NULL REFERENCES %s (server_id),
			attrib_id INTEGER NOT NULL,
			value NOT NULL
		)`, querysql.ValueTable, querysql.ServerTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_attrib_values_server ON %s (server_id, attrib_id)", querysql.ValueTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Stored returns the column representation of v, the same one compiled
// literals use: strings as text, integers as integers, booleans as '1' or
// '0', IPv4 as its unsigned integer and IPv6 as 32 hex digits.
func Stored(v value.Value) any {
	switch x := v.(type) {
	case value.String:
		return string(x)
	case value.Int:
		return int64(x)
	case value.Bool:
		if x {
			return "1"
		}
		return "0"
	case value.IP:
		return int64(x.Uint32())
	case value.IP6:
		return x.Hex()
	default:
		return nil
	}
}

// InsertRecords writes records in one transaction. Enum-backed attributes
// are stored as their id.
func (s *Store) InsertRecords(ctx context.Context, dir *schema.Directory, recs ...*record.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		server, values, err := rows(dir, rec)
		if err != nil {
			return err
		}

		stmt, args, err := s.builder.Insert(querysql.ServerTable).Rows(server).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build server insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert server %d: %w", rec.ID(), err)
		}

		if len(values) == 0 {
			continue
		}
		stmt, args, err = s.builder.Insert(querysql.ValueTable).Rows(values...).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build value insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert values of server %d: %w", rec.ID(), err)
		}
	}
	return tx.Commit()
}

func rows(dir *schema.Directory, rec *record.Record) (goqu.Record, []any, error) {
	server := goqu.Record{"server_id": rec.ID()}
	var values []any

	for _, name := range rec.Names() {
		attr, err := dir.Lookup(name)
		if err != nil {
			return nil, nil, err
		}
		for _, v := range rec.Values(name) {
			stored := Stored(v)
			if attr.Enum != nil {
				id, ok := attr.Enum.ID(value.Text(v))
				if !ok {
					return nil, nil, fmt.Errorf("server %d: %q is not a %s", rec.ID(), value.Text(v), name)
				}
				stored = id
			}
			if attr.Scalar() {
				server[attr.Column] = stored
				continue
			}
			values = append(values, goqu.Record{
				"server_id": rec.ID(),
				"attrib_id": attr.Key,
				"value":     stored,
			})
		}
	}
	return server, values, nil
}
