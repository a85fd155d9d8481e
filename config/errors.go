package config

import (
	"errors"
	"fmt"
	"strings"
)

// StreamError reports that the underlying token cursor could not produce the
// next parse event: an I/O failure or malformed XML. It aborts the entire
// parse; no partial configuration escapes alongside it.
type StreamError struct {
	// Offset is the byte offset in the input where the cursor failed
	Offset int64
	// Err is the underlying decoder or I/O error
	Err error
}

// Error implements the error interface for StreamError.
func (e *StreamError) Error() string {
	return fmt.Sprintf("token stream failed at byte %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying decoder or I/O error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
// Returns true if the target error is a StreamError at the same offset.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	if !ok {
		return false
	}
	return e.Offset == t.Offset
}

// CoercionError reports a document value that could not be turned into its
// target type: non-numeric text where an integer is required, or a required
// attribute that is absent. It identifies the offending scope and field so
// the failure is actionable, and aborts the entire parse.
type CoercionError struct {
	// Scope is the qualified name of the element being read
	Scope string
	// Field names the attribute or value that failed within the scope
	Field string
	// Value is the offending raw text; empty when the field was absent
	Value string
	// Err is the underlying conversion error, if any
	Err error
}

// Error implements the error interface for CoercionError.
func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot coerce %s of %s: %q: %v", e.Field, e.Scope, e.Value, e.Err)
	}
	if e.Value == "" {
		return fmt.Sprintf("missing required %s of %s", e.Field, e.Scope)
	}
	return fmt.Sprintf("cannot coerce %s of %s: %q", e.Field, e.Scope, e.Value)
}

// Unwrap returns the underlying conversion error, or nil for a missing
// required field.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is().
// Returns true if the target error is a CoercionError for the same scope and
// field.
func (e *CoercionError) Is(target error) bool {
	t, ok := target.(*CoercionError)
	if !ok {
		return false
	}
	return e.Scope == t.Scope && e.Field == t.Field
}

// SchemaError reports a configuration that parsed cleanly but violates the
// documented structure: missing engine implementations, non-positive
// threshold counts, detection points without identifiers, and the like.
// The reader itself never raises it, since unknown elements are skipped by
// policy; it is produced only by ServerConfig.Validate after the parse.
type SchemaError struct {
	// Violations lists every rule the configuration breaks
	Violations []string
}

// Error implements the error interface for SchemaError.
// Returns a message listing all violations.
func (e *SchemaError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "configuration violates schema"
	case 1:
		return "configuration violates schema: " + e.Violations[0]
	}
	return fmt.Sprintf("configuration violates schema with %d violations:\n  - %s",
		len(e.Violations), strings.Join(e.Violations, "\n  - "))
}

// Unwrap returns nil as this error doesn't wrap another error.
// Provided for compatibility with errors.Unwrap().
func (e *SchemaError) Unwrap() error {
	return nil
}

// Is implements error matching for errors.Is().
// Returns true if the target error is any SchemaError.
func (e *SchemaError) Is(target error) bool {
	_, ok := target.(*SchemaError)
	return ok
}

// FailureKind classifies a parse or validation error for logs, metrics
// labels, and machine-readable CLI output. It returns "stream", "coercion",
// "schema", or "other".
func FailureKind(err error) string {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return "stream"
	}
	var coercionErr *CoercionError
	if errors.As(err, &coercionErr) {
		return "coercion"
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return "schema"
	}
	return "other"
}
