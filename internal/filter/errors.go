package filter

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes filter errors.
type ErrorCode string

const (
	// ErrCodeInvalidFilterObject indicates a malformed wire object.
	ErrCodeInvalidFilterObject ErrorCode = "INVALID_FILTER_OBJECT"

	// ErrCodeEmptyCombinator indicates And/Or without children.
	ErrCodeEmptyCombinator ErrorCode = "EMPTY_COMBINATOR"

	// ErrCodeInvalidPattern indicates a regular expression that does not compile.
	ErrCodeInvalidPattern ErrorCode = "INVALID_PATTERN"

	// ErrCodeInvalidOperator indicates a Comparison operator outside < > <= >=.
	ErrCodeInvalidOperator ErrorCode = "INVALID_OPERATOR"

	// ErrCodeInvalidNetwork indicates a malformed or non-canonical CIDR network.
	ErrCodeInvalidNetwork ErrorCode = "INVALID_NETWORK"

	// ErrCodeTypeMismatch indicates an operand that cannot be cast to the
	// attribute's type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeInvalidCode indicates canonical text that does not parse.
	ErrCodeInvalidCode ErrorCode = "INVALID_CODE"
)

// Error is returned by constructors, decoders and Typecast.
type Error struct {
	Code ErrorCode

	// Filter is the wire name of the variant involved, if known.
	Filter string

	// Attribute and Value are set for TYPE_MISMATCH.
	Attribute string
	Value     string

	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Attribute != "":
		return fmt.Sprintf("%s: attribute %q, value %q: %s", e.Code, e.Attribute, e.Value, e.Reason)
	case e.Filter != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Filter, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, codes ...ErrorCode) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	for _, c := range codes {
		if fe.Code == c {
			return true
		}
	}
	return false
}

// IsInvalidFilterObject returns true for malformed wire objects, including
// empty combinators. Uses errors.As to handle wrapped errors.
func IsInvalidFilterObject(err error) bool {
	return hasCode(err, ErrCodeInvalidFilterObject, ErrCodeEmptyCombinator)
}

// IsInvalidPattern returns true if err is an INVALID_PATTERN error.
func IsInvalidPattern(err error) bool {
	return hasCode(err, ErrCodeInvalidPattern)
}

// IsInvalidOperator returns true if err is an INVALID_OPERATOR error.
func IsInvalidOperator(err error) bool {
	return hasCode(err, ErrCodeInvalidOperator)
}

// IsTypeMismatch returns true if err is a TYPE_MISMATCH error.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

func invalidObject(name, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidFilterObject, Filter: name, Reason: fmt.Sprintf(format, args...)}
}
