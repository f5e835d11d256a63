package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tourismcli/internal/config"
)

// contextKey is a type for context keys
type contextKey string

const (
	// TraceIDContextKey is the key for storing trace ID in context.
	// For pipeline runs it carries the run ID.
	TraceIDContextKey contextKey = "trace_id"
)

// NewLogger builds the application logger from configuration. The returned
// close function releases the log file, if one was opened.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "file", "both":
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closeFn = file.Close
		output = file
		if cfg.Output == "both" {
			output = io.MultiWriter(os.Stderr, file)
		}
	default:
		// stdout is reserved for command output
		output = os.Stderr
	}

	return NewLoggerTo(output, cfg.Level, cfg.Format), closeFn, nil
}

// NewLoggerTo builds a logger writing to w
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&traceHandler{Handler: handler})
}

// traceHandler wraps a slog.Handler to automatically inject trace_id from context
type traceHandler struct {
	slog.Handler
}

// Handle adds trace_id to the record if present in context
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new Handler with additional attributes
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLogLevel converts string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return traceID
	}
	return ""
}

// openLogFile opens or creates a log file in append mode
func openLogFile(filePath string) (*os.File, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}
