package model

import (
	"errors"
	"fmt"
)

// ErrValidation is the kind shared by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a rejected record field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
