package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when a query check fails.
// It includes the compiled statement to help debug the failure.
type AssertionError struct {
	Type     string // check that failed
	Query    string
	Expected string
	Actual   string
	SQL      string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (query %s)\n", e.Type, e.Query)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nSQL:\n  %s\n", e.SQL)
	}

	return buf.String()
}

// Check types.
const (
	CheckAgreement  = "sql_matcher_agreement"
	CheckExpected   = "expected_ids"
	CheckRestricted = "restricted_attributes"
)

// assertAgreement checks that the compiled query and the matcher selected
// the same servers.
func assertAgreement(qr *QueryResult) error {
	if slices.Equal(qr.SQLIDs, qr.MatchIDs) {
		return nil
	}
	return &AssertionError{
		Type:     CheckAgreement,
		Query:    qr.Name,
		Expected: "matcher ids " + formatIDs(qr.MatchIDs),
		Actual:   "sql ids " + formatIDs(qr.SQLIDs),
		SQL:      qr.SQL,
	}
}

// assertExpected checks the returned ids against the scenario's
// expectation, if it has one.
func assertExpected(qr *QueryResult) error {
	if qr.Expect == nil || slices.Equal(qr.SQLIDs, qr.Expect) {
		return nil
	}
	return &AssertionError{
		Type:     CheckExpected,
		Query:    qr.Name,
		Expected: formatIDs(qr.Expect),
		Actual:   formatIDs(qr.SQLIDs),
		SQL:      qr.SQL,
	}
}

// assertRestricted checks that a restricted query returned no attribute
// outside its restriction.
func assertRestricted(qr *QueryResult) error {
	if qr.Restrict == nil {
		return nil
	}
	for _, rec := range qr.Records {
		for _, name := range rec.Names() {
			if slices.Contains(qr.Restrict, name) {
				continue
			}
			return &AssertionError{
				Type:     CheckRestricted,
				Query:    qr.Name,
				Expected: "attributes within " + strings.Join(qr.Restrict, ", "),
				Actual:   fmt.Sprintf("server %d has %s", rec.ID(), name),
				SQL:      qr.SQL,
			}
		}
	}
	return nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
