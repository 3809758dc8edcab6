package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidJobKind       = NewDomainError(ErrCodeValidation, "invalid embedding job kind")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
)

// Not found errors
var (
	ErrPageNotFound      = NewDomainError(ErrCodeNotFound, "page not found")
	ErrSpaceNotFound     = NewDomainError(ErrCodeNotFound, "space not found")
	ErrWorkspaceNotFound = NewDomainError(ErrCodeNotFound, "workspace not found")
)

// Configuration errors: fatal at resolution time, never retried.
var (
	ErrUnsupportedDriver = NewDomainError(ErrCodeConfiguration, "unsupported AI driver")
)

// Upstream errors: the embedding or completion backend is unavailable or
// throttled. The job queue retries these; the query path surfaces them.
var (
	ErrUpstreamUnavailable = NewDomainError(ErrCodeUpstream, "AI backend unavailable")
)

// Authorization errors
var (
	ErrTokenRevoked = NewDomainError(ErrCodeUnauthorized, "token has been revoked")
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid token")
)
