package errors

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorMiddleware logs every request and turns panics into problem responses
type ErrorMiddleware struct {
	handler *ErrorHandler
	logger  *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(handler *ErrorHandler, logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		handler: handler,
		logger:  logger.With(slog.String("component", "error_middleware")),
	}
}

// Handler returns the middleware handler function
func (m *ErrorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			if err := recover(); err != nil {
				m.handler.HandlePanic(ww, r, err)
			}

			status := ww.Status()
			level := slog.LevelInfo
			if status >= 400 && status < 500 {
				level = slog.LevelWarn
			} else if status >= 500 {
				level = slog.LevelError
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}
			m.logger.LogAttrs(r.Context(), level, "http request", attrs...)
		}()

		next.ServeHTTP(ww, r)
	})
}
