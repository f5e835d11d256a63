package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"tourismcli/internal/infrastructure"
)

// OTelMiddleware traces and counts HTTP requests
type OTelMiddleware struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

// NewOTelMiddleware creates the HTTP instruments on the telemetry meter
func NewOTelMiddleware(t *infrastructure.Telemetry) (*OTelMiddleware, error) {
	m := &OTelMiddleware{tracer: t.Tracer}
	var err error
	if m.requests, err = t.Meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.duration, err = t.Meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	if m.active, err = t.Meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("HTTP requests in flight")); err != nil {
		return nil, fmt.Errorf("failed to create active request gauge: %w", err)
	}
	return m, nil
}

// Handler returns the middleware handler function
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPathKey.String(r.URL.Path),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
			),
		)
		defer span.End()
		r = r.WithContext(ctx)

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		m.active.Add(ctx, 1)
		defer m.active.Add(ctx, -1)

		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", getRoutePattern(r)),
			attribute.Int("status_code", ww.statusCode),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, elapsed.Seconds(), attrs)

		span.SetAttributes(
			semconv.HTTPRouteKey.String(getRoutePattern(r)),
			semconv.HTTPResponseStatusCodeKey.Int(ww.statusCode),
		)
		if ww.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(ww.statusCode))
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getRoutePattern extracts the route pattern from request context
func getRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
