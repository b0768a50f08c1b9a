package pricing

import (
	"errors"
	"fmt"
)

// ValidationError reports numeric input the engine refuses to price.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
