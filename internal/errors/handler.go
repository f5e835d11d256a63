package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Common error types following RFC 7807
const (
	TypeValidation = "/errors/validation"
	TypeNotFound   = "/errors/not-found"
	TypeRateLimit  = "/errors/rate-limit"
	TypeInternal   = "/errors/internal"
	TypeTimeout    = "/errors/timeout"
	TypeConflict   = "/errors/conflict"
)

// Pipeline error types
const (
	TypeSource         = "/errors/pipeline/source"
	TypeParsing        = "/errors/pipeline/parsing"
	TypeReconciliation = "/errors/pipeline/reconciliation"
	TypeNotAccepted    = "/errors/pipeline/not-accepted"
	TypeStorage        = "/errors/pipeline/storage"
	TypeConfig         = "/errors/pipeline/config"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ToProblem(r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// appErrorToProblem maps pipeline failures onto HTTP problems
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	status, problemType, title := http.StatusInternalServerError, TypeInternal, "Internal Server Error"
	switch appErr.Type {
	case ErrTypeSource:
		status, problemType, title = http.StatusUnprocessableEntity, TypeSource, "Source Error"
		if errors.Is(appErr, ErrSourceNotFound) {
			status = http.StatusNotFound
		}
	case ErrTypeParsing:
		status, problemType, title = http.StatusUnprocessableEntity, TypeParsing, "Parse Error"
	case ErrTypeReconciliation:
		status, problemType, title = http.StatusConflict, TypeReconciliation, "Irreconcilable Data"
	case ErrTypeValidation:
		status, problemType, title = http.StatusConflict, TypeNotAccepted, "Result Not Accepted"
	case ErrTypeNotFound:
		status, problemType, title = http.StatusNotFound, TypeNotFound, "Resource Not Found"
	case ErrTypeConfig:
		status, problemType, title = http.StatusBadRequest, TypeConfig, "Configuration Error"
	case ErrTypeStorage:
		problemType, title = TypeStorage, "Storage Error"
	}

	problem := NewProblemDetails(status, problemType, title, appErr.Error(), r.URL.Path).
		WithExtension("error_type", string(appErr.Type))
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
