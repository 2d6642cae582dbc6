package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriver is go-sqlite3 with the MySQL functions compiled fragments
// use. Every connection also gets a case sensitive LIKE, matching
// Startswith on the in-memory side.
const sqliteDriver = "sqlite3_serverdb"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			funcs := []struct {
				name string
				impl any
			}{
				{"INET_NTOA", inetNtoa},
				{"INET6_NTOA", inet6Ntoa},
				{"regexp", regexpMatch},
			}
			for _, f := range funcs {
				if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
					return fmt.Errorf("register %s: %w", f.name, err)
				}
			}
			if _, err := conn.Exec("PRAGMA case_sensitive_like = ON", nil); err != nil {
				return fmt.Errorf("enable case sensitive LIKE: %w", err)
			}
			return nil
		},
	})
}

// inetNtoa renders an IPv4 address stored as an unsigned integer. Like
// MySQL it yields NULL for NULL and out of range input.
func inetNtoa(x any) any {
	var n uint64
	switch v := x.(type) {
	case int64:
		if v < 0 {
			return nil
		}
		n = uint64(v)
	case string:
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil
		}
		n = u
	default:
		return nil
	}
	if n > 0xFFFFFFFF {
		return nil
	}
	b := [4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	return netip.AddrFrom4(b).String()
}

// inet6Ntoa renders an IPv6 address stored as 32 hex digits.
func inet6Ntoa(x any) any {
	var s string
	switch v := x.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return nil
	}
	return netip.AddrFrom16([16]byte(b)).String()
}

var patterns sync.Map // string -> *regexp.Regexp

// regexpMatch implements "value REGEXP pattern", which SQLite calls as
// regexp(pattern, value). It yields NULL for a NULL value; go-sqlite3
// passes NULL arguments as a nil []byte.
func regexpMatch(pattern, x any) (any, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, nil
	}
	var s string
	switch v := x.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case []byte:
		if v == nil {
			return nil, nil
		}
		s = string(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		s = fmt.Sprint(v)
	}

	re, ok := patterns.Load(p)
	if !ok {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		re, _ = patterns.LoadOrStore(p, compiled)
	}
	if re.(*regexp.Regexp).MatchString(s) {
		return int64(1), nil
	}
	return int64(0), nil
}
