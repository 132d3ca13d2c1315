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
		Err:     nil,
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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	// ErrCodeUpstream marks failures of a dependency this service calls out
	// to (the embedding provider). Mapped to 502, never 4xx, so clients can
	// tell their own mistakes from provider outages.
	ErrCodeUpstream = "UPSTREAM_ERROR"
)

// Validation errors
var (
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrTopKTooLarge         = NewDomainError(ErrCodeValidation, "top_k exceeds maximum of 100")
	ErrInvalidMinSimilarity = NewDomainError(ErrCodeValidation, "min_similarity must be between 0 and 1")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidSourceDate    = NewDomainError(ErrCodeValidation, "source_date must be YYYY-MM-DD")
)

// Not found errors
var (
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "file not found")
	ErrIndexRunNotFound = NewDomainError(ErrCodeNotFound, "index run not found")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Upstream errors
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeUpstream, "embedding provider unavailable")
)

// Operation errors
var (
	ErrIndexerBusy = NewDomainError(ErrCodeConflict, "an indexing run is already in progress")
)
