package models

import (
	"fmt"
	"strings"
)

// Validator is implemented by entities decoded from model output.
type Validator interface {
	Validate() error
}

// ValidationError describes the first field that failed a consistency check.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

func invalid(entity, field, format string, args ...any) error {
	return &ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func oneOf[T ~string](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
