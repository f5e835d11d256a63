package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tourismcli/internal/cleaner"
	"tourismcli/internal/config"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/loader"
	"tourismcli/internal/schema"
	"tourismcli/internal/transform"
	"tourismcli/internal/validation"
	"tourismcli/pkg/contracts/domain"
)

// Runner executes the load, clean, transform, fill and validate stages for
// one workbook at a time. A Runner is safe for concurrent use; every run
// keeps its state in its own Result.
type Runner struct {
	cfg       *config.Config
	registry  *schema.Registry
	loader    *loader.Loader
	cleaner   *cleaner.Cleaner
	validator *validation.Validator
	telemetry *infrastructure.Telemetry
	fillGaps  bool
	maxRun    int
	base      *slog.Logger
	logger    *slog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithTelemetry records spans and metrics through t
func WithTelemetry(t *infrastructure.Telemetry) Option {
	return func(r *Runner) {
		if t != nil {
			r.telemetry = t
		}
	}
}

// WithGapFill overrides the configured gap filling switch
func WithGapFill(enabled bool) Option {
	return func(r *Runner) {
		r.fillGaps = enabled
	}
}

// NewRunner builds the stage components from cfg. Cleaner options are
// checked against the registry here, so a bad synonym table fails before
// any workbook is read.
func NewRunner(cfg *config.Config, registry *schema.Registry, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if registry == nil {
		registry = schema.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c, err := cleaner.New(registry, cleaner.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:       cfg,
		registry:  registry,
		loader:    loader.New(logger),
		cleaner:   c,
		validator: validation.New(registry, logger),
		telemetry: infrastructure.NoopTelemetry(),
		fillGaps:  cfg.GapFill.Enabled,
		maxRun:    cfg.GapFill.MaxRun,
		base:      logger,
		logger:    infrastructure.WithComponent(logger, "pipeline"),
	}
	if r.maxRun <= 0 {
		r.maxRun = config.DefaultMaxGapRun
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Registry returns the registry shared by every run
func (r *Runner) Registry() *schema.Registry {
	return r.registry
}

// Run processes the workbook at path. A fail-fast error yields a failed
// result without records or report, together with the wrapped error.
func (r *Runner) Run(ctx context.Context, path string) (*Result, error) {
	runID := infrastructure.GenerateTraceID()
	ctx = infrastructure.WithTraceID(ctx, runID)

	ctx, span := r.telemetry.Tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("source.path", path),
	))
	defer span.End()

	r.telemetry.Metrics.ActiveRuns.Add(ctx, 1)
	defer r.telemetry.Metrics.ActiveRuns.Add(ctx, -1)

	result := &Result{
		RunID:         runID,
		SourcePath:    path,
		SourceVersion: r.cfg.SourceVersion(path),
		Stages:        newStages(),
		StartedAt:     time.Now().UTC(),
	}

	r.logger.InfoContext(ctx, "run started",
		slog.String("path", path),
		slog.String("source_version", result.SourceVersion),
		slog.Bool("fill_gaps", r.fillGaps))

	if err := r.execute(ctx, result); err != nil {
		result.Status = domain.RunStatusFailed
		result.Records = nil
		result.Report = nil
		result.GapFill = nil
		result.Units = nil
		result.Error = err.Error()
		result.FinishedAt = time.Now().UTC()

		infrastructure.RecordError(ctx, err)
		r.telemetry.Metrics.RecordRun(ctx, string(result.Status), result.Duration(), 0)
		infrastructure.WithError(r.logger, err).ErrorContext(ctx, "run failed",
			slog.String("path", path),
			slog.Duration("duration", result.Duration()))
		return result, fmt.Errorf("run %s: %w", runID, err)
	}

	result.Status = result.Report.Status()
	result.FinishedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.String("run.status", string(result.Status)),
		attribute.Int("run.records", len(result.Records)),
	)
	r.telemetry.Metrics.RecordRun(ctx, string(result.Status), result.Duration(), len(result.Records))
	for _, issue := range result.Report.Issues() {
		r.telemetry.Metrics.RecordIssue(ctx, string(issue.Severity), issue.Rule)
	}

	r.logger.InfoContext(ctx, "run finished",
		slog.String("status", string(result.Status)),
		slog.Int("records", len(result.Records)),
		slog.Int("errors", len(result.Report.Errors())),
		slog.Int("warnings", len(result.Report.Warnings())),
		slog.Duration("duration", result.Duration()))
	return result, nil
}

// execute runs the stages in order and stops at the first failure
func (r *Runner) execute(ctx context.Context, result *Result) error {
	var (
		tables    []domain.RawTable
		cleaned   [][]domain.CleanRecord
		ledger    cleaner.UnitLedger
		tr        *transform.Result
		records   []domain.CanonicalRecord
		gapFlags  []transform.GapFlag
		gapFilled *transform.GapFillStatistics
	)

	err := r.stage(ctx, result.Stage(StageLoad), func(ctx context.Context, st *StageState) error {
		var err error
		tables, err = r.loader.Load(ctx, result.SourcePath, r.cfg.Source.Sheets)
		st.SetCount("sheets", len(tables))
		return err
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, result.Stage(StageClean), func(ctx context.Context, st *StageState) error {
		cleaned = make([][]domain.CleanRecord, 0, len(tables))
		total := 0
		for _, raw := range tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, units, err := r.cleaner.Clean(raw)
			if err != nil {
				return err
			}
			ledger.Merge(units)
			cleaned = append(cleaned, recs)
			total += len(recs)
		}
		st.SetCount("rows", total)
		return nil
	})
	if err != nil {
		return err
	}
	result.Units = []domain.UnitEntry(ledger)

	err = r.stage(ctx, result.Stage(StageTransform), func(ctx context.Context, st *StageState) error {
		t := transform.New(r.registry, transform.Options{SourceVersion: result.SourceVersion}, r.base)
		var err error
		tr, err = t.Transform(cleaned)
		if err != nil {
			return err
		}
		records = tr.Records
		st.SetCount("records", len(records))
		st.SetCount("superseded", len(tr.Superseded))
		if len(tr.Superseded) > 0 {
			infrastructure.AddSpanEvent(ctx, "records.superseded", attribute.Int("count", len(tr.Superseded)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fill := result.Stage(StageFill)
	if r.fillGaps {
		err = r.stage(ctx, fill, func(ctx context.Context, st *StageState) error {
			filled, flags, stats := transform.NewGapFiller(r.maxRun).FillAll(records)
			records, gapFlags, gapFilled = filled, flags, &stats
			st.SetCount("filled", stats.FilledCount)
			st.SetCount("flagged", stats.FlaggedCount)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		fill.Skip("gap filling disabled")
	}

	err = r.stage(ctx, result.Stage(StageValidate), func(ctx context.Context, st *StageState) error {
		report := r.validator.Validate(records, validation.Context{
			RunID:         result.RunID,
			SourceVersion: result.SourceVersion,
			Superseded:    tr.Superseded,
			GapFlags:      gapFlags,
			Units:         result.Units,
		})
		st.SetCount("errors", len(report.Errors()))
		st.SetCount("warnings", len(report.Warnings()))
		result.Report = report
		return nil
	})
	if err != nil {
		return err
	}

	result.Records = records
	result.GapFill = gapFilled
	return nil
}

// stage runs fn as one tracked stage. Cancellation is checked before the
// stage starts.
func (r *Runner) stage(ctx context.Context, st *StageState, fn func(context.Context, *StageState) error) error {
	if err := ctx.Err(); err != nil {
		st.Fail(err)
		return err
	}

	ctx, span := r.telemetry.Tracer.Start(ctx, "pipeline."+st.Name)
	defer span.End()

	st.Start()
	err := fn(ctx, st)
	if err != nil {
		st.Fail(err)
		infrastructure.RecordError(ctx, err)
	} else {
		st.Complete()
	}
	r.telemetry.Metrics.RecordStage(ctx, st.Name, st.Duration(), err)

	r.logger.DebugContext(ctx, "stage finished",
		slog.String("stage", st.Name),
		slog.String("status", string(st.GetStatus())),
		slog.Duration("duration", st.Duration()))
	return err
}

// RunBatch runs each workbook in isolation with at most concurrency runs at
// once. Results are returned in path order; a failed run leaves its failed
// result in place and its error joined into the returned error.
func (r *Runner) RunBatch(ctx context.Context, paths []string, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			results[i], errs[i] = r.Run(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.InfoContext(ctx, "batch finished",
		slog.Int("workbooks", len(paths)),
		slog.Int("concurrency", concurrency))
	return results, errors.Join(errs...)
}
