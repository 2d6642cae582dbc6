package querysql

import (
	"fmt"
	"strings"
)

// Dialect renders the engine-specific primitives fragments need. Every
// string literal in a fragment goes through Quote.
type Dialect interface {
	// Name is the goqu dialect name.
	Name() string

	// Quote renders s as a string literal.
	Quote(s string) string

	// AddrToString renders the dotted-quad text of an IPv4 column stored
	// as an unsigned integer.
	AddrToString(field string) string

	// Addr6ToString renders the RFC 5952 text of an IPv6 column stored as
	// 32 hex digits.
	Addr6ToString(field string) string

	// Like matches field against a LIKE pattern whose literal wildcards
	// are escaped with a backslash.
	Like(field, pattern string) string

	// Regexp matches field against a regular expression.
	Regexp(field, pattern string) string
}

type mysqlDialect struct{}

// MySQL targets MySQL and MariaDB.
var MySQL Dialect = mysqlDialect{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func (mysqlDialect) AddrToString(field string) string {
	return "INET_NTOA(" + field + ")"
}

func (mysqlDialect) Addr6ToString(field string) string {
	return "INET6_NTOA(UNHEX(" + field + "))"
}

func (d mysqlDialect) Like(field, pattern string) string {
	return field + " LIKE " + d.Quote(pattern)
}

func (d mysqlDialect) Regexp(field, pattern string) string {
	return field + " REGEXP " + d.Quote(pattern)
}

type sqliteDialect struct{}

// SQLite targets the embedded store. It relies on the INET_NTOA,
// INET6_NTOA and regexp functions registered by the store's driver.
var SQLite Dialect = sqliteDialect{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) Quote(s string) string {
	return "'" + strings.ReplaceAll(s, `'`, `''`) + "'"
}

func (sqliteDialect) AddrToString(field string) string {
	return "INET_NTOA(" + field + ")"
}

func (sqliteDialect) Addr6ToString(field string) string {
	return "INET6_NTOA(" + field + ")"
}

func (d sqliteDialect) Like(field, pattern string) string {
	return field + " LIKE " + d.Quote(pattern) + ` ESCAPE '\'`
}

func (d sqliteDialect) Regexp(field, pattern string) string {
	return field + " REGEXP " + d.Quote(pattern)
}

// DialectByName returns the dialect for a goqu dialect or driver name.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return MySQL, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q (want mysql or sqlite3)", name)
	}
}

// EscapeLike escapes the LIKE wildcards and the escape character itself.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
