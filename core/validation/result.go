package validation

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a validation failure. The kind names are part of the
// wire contract for failure payloads.
type ErrorKind string

const (
	// Missing marks a required field absent from the request.
	Missing ErrorKind = "missing"

	// TypeMismatch marks a value that cannot be coerced to the declared kind.
	TypeMismatch ErrorKind = "type_mismatch"

	// OutOfRange marks a well-typed value that violates a bound or enum.
	OutOfRange ErrorKind = "out_of_range"

	// UnknownField marks an undeclared field rejected by a strict schema.
	UnknownField ErrorKind = "unknown_field"
)

// FieldError represents a single validation failure. Field is the dotted
// path of the offending value (profile.age, tags.0). The rejected raw value
// is kept for logging but never serialized.
type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Value   any       `json:"-"`
	Message string    `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result holds the outcome of validating one request. A result is
// all-or-nothing: a valid result carries the coerced values and no errors,
// an invalid one carries errors and no values.
type Result struct {
	Valid  bool           `json:"valid"`
	Errors []FieldError   `json:"errors,omitempty"`
	Values map[string]any `json:"-"`
}

// AddError records a validation error and marks the result invalid.
func (r *Result) AddError(field string, kind ErrorKind, value any, message string) {
	r.Valid = false
	r.Values = nil
	r.Errors = append(r.Errors, FieldError{
		Field:   field,
		Kind:    kind,
		Value:   value,
		Message: message,
	})
}

// Error returns a combined error message.
func (r Result) Error() string {
	if r.Valid {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrorPayload is the serialized form of a failed validation.
type ErrorPayload struct {
	Errors []FieldError `json:"errors"`
}

// Payload returns the wire representation of the result's errors.
func (r Result) Payload() ErrorPayload {
	return ErrorPayload{Errors: r.Errors}
}
