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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternalError = "INTERNAL_ERROR"

	// Ingestion stage failures; each marks the document terminally failed.
	ErrCodeExtraction = "EXTRACTION_ERROR"
	ErrCodeEmbedding  = "EMBEDDING_ERROR"
	ErrCodeIndex      = "INDEX_ERROR"

	// Chat-path failures surfaced through the event protocol as RUN_ERROR.
	ErrCodeRetrievalTransient = "RETRIEVAL_TRANSIENT"
	ErrCodeGeneration         = "GENERATION_ERROR"

	// Malformed generation output during FAQ suggestion parsing.
	ErrCodeParse = "PARSE_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidDocumentState = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidQueryStatus   = NewDomainError(ErrCodeValidation, "invalid unanswered query status")
	ErrInvalidIngestStatus  = NewDomainError(ErrCodeValidation, "invalid ingest job status")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrSessionNotFound  = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrQueryNotFound    = NewDomainError(ErrCodeNotFound, "unanswered query not found")
	ErrFaqNotFound      = NewDomainError(ErrCodeNotFound, "faq entry not found")
	ErrTenantNotFound   = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrTenantAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Terminal query state transitions
var (
	ErrQueryAlreadyResolved = NewDomainError(ErrCodeValidation, "unanswered query is already converted or dismissed")
)
