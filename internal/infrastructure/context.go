package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := GetTraceID(ctx); id != "" {
		return ctx, id
	}
	id := GenerateTraceID()
	return WithTraceID(ctx, id), id
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With(slog.String("error", err.Error()))
}
