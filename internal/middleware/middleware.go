package middleware

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
)

// RequestID tags every request with an ID taken from X-Request-ID or a new
// UUID. The ID doubles as the trace_id of request logs and is visible to
// chi's GetReqID. It should be the first middleware in the chain.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, requestID)
		ctx = infrastructure.WithTraceID(ctx, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetReqID retrieves the request ID from the context
func GetReqID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// RateLimiter applies one token bucket to every request
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter allowing rps requests per second with burst
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  infrastructure.WithComponent(logger, "rate_limiter"),
	}
}

// Handler implements rate limiting middleware
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			problem := apperrors.ErrRateLimitExceeded.ToProblem(r).
				WithExtension("trace_id", GetReqID(r.Context()))
			w.Header().Set("Retry-After", "1")
			render.Render(w, r, problem)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders adds the headers a JSON-only API needs
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
