// Package value provides the typed attribute values of the server inventory.
//
// This package contains the value model only. Every other internal package
// imports value; value imports nothing internal.
//
// Key constraints:
//   - Values are a sealed set: String, Int, Bool, IP (IPv4) and IP6
//   - No floats anywhere; numbers are int64
//   - Strings are NFC normalized when cast
//   - Text(v) is the form the database sees after address-to-string
//     conversion, so in-memory pattern matching agrees with SQL
package value
