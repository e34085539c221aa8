package errors

import (
	"fmt"
)

// QuadError is the structured error type for quadfuse.
// It provides context for error handling, logging, and user presentation.
type QuadError struct {
	// Code is the unique error code (e.g., "ERR_201_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, Source, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *QuadError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QuadError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QuadError.
func (e *QuadError) Is(target error) bool {
	if t, ok := target.(*QuadError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QuadError) WithDetail(key, value string) *QuadError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new QuadError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QuadError {
	return &QuadError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new QuadError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *QuadError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a QuadError from an existing error.
// The error's message becomes the QuadError message.
func Wrap(code string, err error) *QuadError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *QuadError {
	return New(ErrCodeInvalidOptions, message, cause)
}

// SourceError creates a source adapter error. Source errors are recoverable
// locally: the failing source is dropped, the query continues.
func SourceError(message string, cause error) *QuadError {
	return New(ErrCodeSourceFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QuadError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a QuadError with the Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuadError); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuadError); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QuadError.
// Returns empty string if not a QuadError.
func GetCode(err error) string {
	if qe, ok := err.(*QuadError); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category from a QuadError.
// Returns empty string if not a QuadError.
func GetCategory(err error) Category {
	if qe, ok := err.(*QuadError); ok {
		return qe.Category
	}
	return ""
}
