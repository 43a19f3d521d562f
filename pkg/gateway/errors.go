package gateway

import (
	"errors"
	"fmt"
)

// ValidationError indicates a caller bug: malformed input the gateway
// refuses to absorb. It is the only error kind the facade's read path
// ever returns; store faults degrade instead.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
