package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	contracts "tourismcli/pkg/contracts"
)

// InstrumentationName names the tracer and meter
const InstrumentationName = "tourismcli/pipeline"

// Telemetry holds the OpenTelemetry providers and the pipeline instruments.
// It owns its providers; nothing is installed globally.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *PipelineMetrics
	// MetricsHandler serves the Prometheus scrape endpoint; nil when metrics are off.
	MetricsHandler http.Handler

	logger *slog.Logger
}

// NewTelemetry creates providers according to cfg
func NewTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	return newTelemetry(cfg, logger, os.Stderr)
}

func newTelemetry(cfg config.TelemetryConfig, logger *slog.Logger, traceOut io.Writer) (*Telemetry, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(contracts.Version),
	)

	t := &Telemetry{
		Tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Meter:  metricnoop.NewMeterProvider().Meter(InstrumentationName),
		logger: WithComponent(logger, "telemetry"),
	}

	if cfg.StdoutTraces {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.Tracer = t.TracerProvider.Tracer(InstrumentationName, trace.WithInstrumentationVersion(contracts.Version))
	}

	if cfg.Metrics {
		registry := prom.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		t.Meter = t.MeterProvider.Meter(InstrumentationName, metric.WithInstrumentationVersion(contracts.Version))
		t.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	metrics, err := NewPipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	t.logger.Debug("telemetry initialised",
		slog.Bool("stdout_traces", cfg.StdoutTraces),
		slog.Bool("metrics", cfg.Metrics))
	return t, nil
}

// NoopTelemetry returns telemetry that records nothing
func NoopTelemetry() *Telemetry {
	meter := metricnoop.NewMeterProvider().Meter(InstrumentationName)
	metrics, _ := NewPipelineMetrics(meter)
	return &Telemetry{
		Tracer:  tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		Meter:   meter,
		Metrics: metrics,
		logger:  slog.Default(),
	}
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PipelineMetrics holds the pipeline instruments
type PipelineMetrics struct {
	RunsTotal       metric.Int64Counter
	RunDuration     metric.Float64Histogram
	StageDuration   metric.Float64Histogram
	StageErrors     metric.Int64Counter
	RecordsProduced metric.Int64Counter
	IssuesTotal     metric.Int64Counter
	ActiveRuns      metric.Int64UpDownCounter
}

// NewPipelineMetrics creates the instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)

	if m.RunsTotal, err = meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Pipeline runs by final status"),
	); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.StageDuration, err = meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.StageErrors, err = meter.Int64Counter(
		"pipeline_stage_errors_total",
		metric.WithDescription("Fail-fast errors by stage and error type"),
	); err != nil {
		return nil, err
	}
	if m.RecordsProduced, err = meter.Int64Counter(
		"pipeline_records_total",
		metric.WithDescription("Canonical records produced"),
	); err != nil {
		return nil, err
	}
	if m.IssuesTotal, err = meter.Int64Counter(
		"pipeline_validation_issues_total",
		metric.WithDescription("Validation issues by severity and rule"),
	); err != nil {
		return nil, err
	}
	if m.ActiveRuns, err = meter.Int64UpDownCounter(
		"pipeline_active_runs",
		metric.WithDescription("Pipeline runs in progress"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordStage records one stage outcome
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
	if err != nil {
		m.StageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("error.type", errorTypeOf(err)),
		))
	}
}

// RecordRun records a finished run
func (m *PipelineMetrics) RecordRun(ctx context.Context, status string, duration time.Duration, records int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
	m.RecordsProduced.Add(ctx, int64(records))
}

// RecordIssue counts one validation issue
func (m *PipelineMetrics) RecordIssue(ctx context.Context, severity, rule string) {
	if m == nil {
		return
	}
	m.IssuesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
		attribute.String("rule", rule),
	))
}

func errorTypeOf(err error) string {
	if errType, ok := apperrors.TypeOf(err); ok {
		return string(errType)
	}
	return fmt.Sprintf("%T", err)
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
