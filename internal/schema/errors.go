package schema

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// UnknownAttributeError reports a name absent from the directory.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("UNKNOWN_ATTRIBUTE: attribute %q is not in the schema directory", e.Name)
}

// IsUnknownAttribute returns true if err is or wraps an UnknownAttributeError.
func IsUnknownAttribute(err error) bool {
	var ue *UnknownAttributeError
	return errors.As(err, &ue)
}

// LoadError reports a malformed directory file.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
