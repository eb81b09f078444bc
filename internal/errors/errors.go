package errors

import (
	"fmt"
)

// SageError is the structured error type for NoteSage.
// It provides rich context for error handling, logging, and user presentation.
type SageError struct {
	// Code is the unique error code (e.g., "ERR_201_NOTE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
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
func (e *SageError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SageError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SageError.
func (e *SageError) Is(target error) bool {
	if t, ok := target.(*SageError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SageError) WithDetail(key, value string) *SageError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SageError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SageError {
	return &SageError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SageError from an existing error.
// The error's message becomes the SageError message.
func Wrap(code string, err error) *SageError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a not-found error for the given note id.
func NotFound(id string) *SageError {
	return New(ErrCodeNoteNotFound, fmt.Sprintf("note %q not found", id), nil)
}

// ParseError creates a non-fatal parse error. Documents carrying one are
// indexed as plain text rather than rejected.
func ParseError(message string, cause error) *SageError {
	return New(ErrCodeParse, message, cause)
}

// EmbeddingError creates an embedding-failure error. Retryable; the
// coordinator re-attempts the document on the next sweep.
func EmbeddingError(message string, cause error) *SageError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// IndexWriteError creates an index storage failure error.
func IndexWriteError(message string, cause error) *SageError {
	return New(ErrCodeIndexWrite, message, cause)
}

// StaleGeneration creates the internal error used when an indexing result
// loses the write-generation race. Never surfaced to callers.
func StaleGeneration(id string) *SageError {
	return New(ErrCodeStaleGeneration, fmt.Sprintf("discarding stale write for %q", id), nil)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SageError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SageError); ok {
		return se.Retryable
	}
	return false
}

// IsNotFound checks if an error is a note-not-found error.
func IsNotFound(err error) bool {
	if se, ok := err.(*SageError); ok {
		return se.Code == ErrCodeNoteNotFound
	}
	return false
}

// GetCode extracts the error code from a SageError.
// Returns empty string if not a SageError.
func GetCode(err error) string {
	if se, ok := err.(*SageError); ok {
		return se.Code
	}
	return ""
}
