// Package errors provides standardized error handling for the API layer.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge   ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrCodeVectorstoreError  ErrorCode = "VECTORSTORE_ERROR"
	ErrCodeLLMError          ErrorCode = "LLM_ERROR"
	ErrCodeIngestionError    ErrorCode = "INGESTION_ERROR"
)

// errorDef carries the registry entry for one error code.
type errorDef struct {
	Message     string
	HTTPStatus  int
	NumericCode int
}

var errorRegistry = map[ErrorCode]errorDef{
	ErrCodeInvalidInput:      {"Invalid input provided.", http.StatusBadRequest, 1001},
	ErrCodeNotFound:          {"Requested resource not found.", http.StatusNotFound, 1002},
	ErrCodeUnauthorized:      {"Authentication credentials were not provided or are invalid.", http.StatusUnauthorized, 1003},
	ErrCodeForbidden:         {"You do not have permission to perform this action.", http.StatusForbidden, 1004},
	ErrCodeRateLimitExceeded: {"Rate limit exceeded.", http.StatusTooManyRequests, 1005},
	ErrCodeRequestTooLarge:   {"Request body too large.", http.StatusRequestEntityTooLarge, 1006},
	ErrCodeInternalError:     {"Internal server error.", http.StatusInternalServerError, 1007},
	ErrCodeVectorstoreError:  {"Vector store error.", http.StatusInternalServerError, 1008},
	ErrCodeLLMError:          {"Language model error.", http.StatusBadGateway, 1009},
	ErrCodeIngestionError:    {"Document ingestion failed.", http.StatusInternalServerError, 1010},
}

// APIError represents a structured application error surfaced to API clients.
type APIError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	NumericCode int                    `json:"numeric_code"`
	HTTPStatus  int                    `json:"-"`
	Timestamp   time.Time              `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// New creates an APIError for the given code with the registry defaults.
func New(code ErrorCode) *APIError {
	return NewWithDetails(code, "", nil)
}

// NewWithMessage creates an APIError overriding the default message.
func NewWithMessage(code ErrorCode, message string) *APIError {
	return NewWithDetails(code, message, nil)
}

// NewWithDetails creates an APIError with an optional message override and details.
func NewWithDetails(code ErrorCode, message string, details map[string]interface{}) *APIError {
	def, ok := errorRegistry[code]
	if !ok {
		def = errorRegistry[ErrCodeInternalError]
	}
	if message == "" {
		message = def.Message
	}
	return &APIError{
		Code:        code,
		Message:     message,
		Details:     details,
		NumericCode: def.NumericCode,
		HTTPStatus:  def.HTTPStatus,
		Timestamp:   time.Now().UTC(),
	}
}

// NewInvalidInputError creates a client error for a specific field.
func NewInvalidInputError(field, message string) *APIError {
	return NewWithDetails(ErrCodeInvalidInput, message, map[string]interface{}{
		"field": field,
	})
}

// NewUnsafeInputError creates a client error carrying sanitization warnings.
func NewUnsafeInputError(warnings []string) *APIError {
	return NewWithDetails(
		ErrCodeInvalidInput,
		"Query contains potentially harmful content and was blocked for security reasons",
		map[string]interface{}{
			"field":    "q",
			"warnings": warnings,
			"reason":   "Query contains potentially harmful content",
		},
	)
}

// NewSessionNotFoundError creates a not-found error for a session id.
func NewSessionNotFoundError(sessionID string) *APIError {
	return NewWithDetails(ErrCodeNotFound, "Session not found", map[string]interface{}{
		"session_id": sessionID,
	})
}

// NewRateLimitError creates a rate-limit error carrying the retry delay.
func NewRateLimitError(retryAfterSeconds int) *APIError {
	return NewWithDetails(ErrCodeRateLimitExceeded, "", map[string]interface{}{
		"retry_after": retryAfterSeconds,
	})
}

// NewIngestionError wraps a document ingestion failure.
func NewIngestionError(err error) *APIError {
	return NewWithDetails(ErrCodeIngestionError, "", map[string]interface{}{
		"error": err.Error(),
	})
}

// ==========================
// 3. Utility Functions
// ==========================

// AsAPIError returns err as an *APIError, wrapping unknown errors as internal.
func AsAPIError(err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewWithDetails(ErrCodeInternalError, "", map[string]interface{}{
		"error": err.Error(),
	})
}

// StatusFor returns the HTTP status registered for the code.
func StatusFor(code ErrorCode) int {
	if def, ok := errorRegistry[code]; ok {
		return def.HTTPStatus
	}
	return http.StatusInternalServerError
}
