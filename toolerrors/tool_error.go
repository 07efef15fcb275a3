// Package toolerrors provides a structured error type for tool and
// Function Hub invocation failures. ToolError preserves causal chains and
// supports errors.Is/As while staying simple enough to embed directly in
// an ErrorObservation payload.
package toolerrors

import (
	"errors"
	"fmt"
)

// ToolError is a structured failure that preserves a message and an
// optional causal chain while still implementing the error interface.
type ToolError struct {
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying tool error, enabling chains
	// traversable with errors.Is/As.
	Cause *ToolError
}

// New constructs a ToolError with the given message and no cause.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message}
}

// NewWithCause constructs a ToolError that wraps an underlying error.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a ToolError chain, reusing
// an existing ToolError in the chain if present rather than flattening it.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Errorf formats a message and returns it as a ToolError.
func Errorf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap supports errors.Is/As traversal of the cause chain.
func (e *ToolError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Retryable classifies well-known transport-layer failures per the
// error taxonomy: Timeout, APIConnection, ServiceUnavailable, and
// InternalServer are worth a retry; Authentication and BadRequest are not.
type Retryable struct {
	Timeout            bool
	APIConnection      bool
	ServiceUnavailable bool
	InternalServer     bool
}

// IsRetryable reports whether any of the classified conditions hold.
func (r Retryable) IsRetryable() bool {
	return r.Timeout || r.APIConnection || r.ServiceUnavailable || r.InternalServer
}
