// Package domain defines the core domain models for TokenGate.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "TG-TOK-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Token Errors (TOK)
// ============================================================================

var (
	// ErrTokenNotFound indicates the token is absent: never issued,
	// already revoked, or already swept.
	ErrTokenNotFound = NewDomainError("TG-TOK-4040", "token not found")

	// ErrTokenExpired indicates the token existed but aged past its TTL.
	ErrTokenExpired = NewDomainError("TG-TOK-4041", "token expired")

	// ErrTokenMalformed indicates the token value is not well formed.
	ErrTokenMalformed = NewDomainError("TG-TOK-4000", "malformed token")

	// ErrInvalidPayload indicates the payload is not valid JSON.
	ErrInvalidPayload = NewDomainError("TG-TOK-4001", "invalid token payload")

	// ErrDuplicateToken indicates an insert hit an existing token value.
	ErrDuplicateToken = NewDomainError("TG-TOK-4090", "token already exists")

	// ErrStaleRecord indicates a conditional update found the record
	// changed concurrently, or gone.
	ErrStaleRecord = NewDomainError("TG-TOK-4091", "token record changed concurrently")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid operation argument.
	ErrInvalidArgument = NewDomainError("TG-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TG-ARG-1002", "missing required argument")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("TG-SYS-5000", "internal error")

	// ErrStorage indicates a storage layer failure: connectivity,
	// constraint violation, timeout.
	ErrStorage = NewDomainError("TG-SYS-5001", "storage error")
)
