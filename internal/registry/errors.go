package registry

import (
	"errors"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when no match with the requested id is stored.
	ErrNotFound = errors.New("match not found")
)

// ValidationError lists the registration fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Is reports ErrValidation as the sentinel for errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
