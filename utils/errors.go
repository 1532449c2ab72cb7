package utils

import "strings"

// ValidationError carries the human readable reasons a piece of input was rejected.
type ValidationError struct {
	Reasons []string
}

// NewValidationError builds a ValidationError from one or more reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
