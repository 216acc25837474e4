package grounding

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream matches every *UpstreamError
	ErrUpstream = errors.New("upstream call failed")

	// ErrSchemaParse matches every *SchemaParseError
	ErrSchemaParse = errors.New("structured output did not match schema")

	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("invalid input")
)

// UpstreamError reports a failed backend call or an empty payload
type UpstreamError struct {
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: backend call failed: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// SchemaParseError reports structured output that does not match the declared shape
type SchemaParseError struct {
	Operation string
	Payload   string
	Err       error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Operation, e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

func (e *SchemaParseError) Is(target error) bool { return target == ErrSchemaParse }

// ValidationError reports input rejected before any backend call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s must not be blank", e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// errEmptyPayload is wrapped into an UpstreamError when the backend returns no text
var errEmptyPayload = errors.New("empty response")
