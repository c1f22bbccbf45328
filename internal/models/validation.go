package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the storage format of calendar dates (no time of day).
// Lexical order of dates in this layout equals chronological order.
const DateLayout = "2006-01-02"

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a request payload that failed boundary validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// IsDate reports whether s is a well-formed YYYY-MM-DD date.
func IsDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// FormatDate formats t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
