package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for decoding API documents.
var (
	// ErrMissingRequiredField indicates that a field the model cannot exist without
	// (such as an entry id) was absent or empty in the source document.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrMalformedValue indicates that a present field had an unexpected JSON type.
	// Decoding does not fail on it; the field is skipped and the event is logged.
	ErrMalformedValue = errors.New("malformed value")

	// ErrInvalidDocument indicates that the raw bytes were not a JSON document of the expected shape.
	ErrInvalidDocument = errors.New("invalid document")
)

// FieldError describes a decoding problem on a single document field.
// It wraps one of the sentinel errors above so callers can match with errors.Is.
type FieldError struct {
	Field string
	Err   error
}

// Error returns a formatted error message for the field error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field '%s': %v", e.Field, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *FieldError) Unwrap() error {
	return e.Err
}
