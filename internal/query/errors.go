package query

import (
	"errors"
	"fmt"
)

// RequestError reports a request that cannot be decoded or assembled.
type RequestError struct {
	// Attribute is the attribute involved, if any.
	Attribute string
	Reason    string
	Err       error
}

func (e *RequestError) Error() string {
	msg := "INVALID_REQUEST: " + e.Reason
	if e.Attribute != "" {
		msg = fmt.Sprintf("INVALID_REQUEST: attribute %q: %s", e.Attribute, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
