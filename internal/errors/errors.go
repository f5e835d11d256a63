package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// ErrRateLimitExceeded is returned to clients over the request budget
var ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please retry later")

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", errs)
}

// ToProblem converts the error to RFC 7807 Problem Details for request r
func (e *APIError) ToProblem(r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch e.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	}

	problem := NewProblemDetails(
		e.StatusCode,
		problemType,
		http.StatusText(e.StatusCode),
		e.Message,
		r.URL.Path,
	).WithExtension("error_code", e.ErrorCode)

	if e.Details != nil {
		problem.WithExtension("details", e.Details)
	}
	return problem
}
