// Package store runs compiled queries against a relational database
// holding the two-table server layout:
//
//	admin_server  (server_id, <one column per scalar attribute>)
//	attrib_values (server_id, attrib_id, value)
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3 behind a private driver name that
//     registers INET_NTOA, INET6_NTOA and regexp on every connection, so
//     fragments written for MySQL run unchanged
//   - mysql: github.com/go-sql-driver/mysql
//
// # Stored forms
//
// Values are stored the way compiled literals reference them: strings as
// text, integers as integers, booleans as '1'/'0', IPv4 addresses as their
// unsigned integer and IPv6 addresses as 32 lowercase hex digits. SQLite
// columns are declared without a type, so each value keeps that storage
// class and comparisons behave as they do in MySQL.
//
// # Seeding
//
// Migrate and InsertRecords create and fill the tables for tests and local
// development. They do no locking and keep no change log; they are not a
// commit path.
package store
