package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Authorization errors
	ErrCodeAuthorization  ErrorCode = "AUTHORIZATION"
	ErrCodeScopeViolation ErrorCode = "SCOPE_VIOLATION"

	// Execution errors
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeContentMismatch ErrorCode = "CONTENT_MISMATCH"
	ErrCodeMalformedInput  ErrorCode = "MALFORMED_INPUT"

	// Streaming errors
	ErrCodeRunawayResponse ErrorCode = "RUNAWAY_RESPONSE"
	ErrCodeReentrancy      ErrorCode = "REENTRANCY"

	// Environment errors
	ErrCodeNoWorkspace ErrorCode = "NO_WORKSPACE"
	ErrCodeProvider    ErrorCode = "PROVIDER"
	ErrCodeStorage     ErrorCode = "STORAGE"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error represents a structured warden error
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Context    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a structured error
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a structured error with a formatted message
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Underlying: err}
}

// WithContext attaches contextual key/value data to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the error code from an error chain.
// Returns ErrCodeInternal for non-structured errors.
func CodeOf(err error) ErrorCode {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any error in the chain carries the given code
func HasCode(err error, code ErrorCode) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}
