package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"tourismcli/internal/config"
	"tourismcli/internal/exporter"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/pipeline"
	"tourismcli/internal/schema"
	"tourismcli/internal/store"
	"tourismcli/pkg/contracts/domain"
)

// RunRequest asks for one workbook to be processed
type RunRequest struct {
	SourcePath string `json:"source_path" validate:"required,workbook"`
	// FillGaps overrides the configured gap filling switch when set
	FillGaps      *bool    `json:"fill_gaps,omitempty"`
	Persist       bool     `json:"persist"`
	AllowNonClean bool     `json:"allow_non_clean"`
	Formats       []string `json:"formats,omitempty" validate:"omitempty,dive,oneof=csv xlsx snappy parquet"`
}

// RunResponse is the outcome of a submitted run
type RunResponse struct {
	Run      pipeline.Summary       `json:"run"`
	Stages   []*pipeline.StageState `json:"stages"`
	Manifest *exporter.Manifest     `json:"manifest,omitempty"`
}

// RunService runs workbooks, keeps their results and persists accepted ones
type RunService struct {
	runners   map[bool]*pipeline.Runner
	fillGaps  bool
	store     store.RunStore
	writer    *exporter.Writer
	outputDir string
	logger    *slog.Logger
}

// NewRunService builds one runner per gap filling mode so requests can
// choose either without rebuilding the stages
func NewRunService(cfg *config.Config, registry *schema.Registry, runs store.RunStore, telemetry *infrastructure.Telemetry, logger *slog.Logger) (*RunService, error) {
	runners := make(map[bool]*pipeline.Runner, 2)
	for _, fill := range []bool{false, true} {
		r, err := pipeline.NewRunner(cfg, registry, logger, pipeline.WithTelemetry(telemetry), pipeline.WithGapFill(fill))
		if err != nil {
			return nil, err
		}
		runners[fill] = r
	}
	return &RunService{
		runners:   runners,
		fillGaps:  cfg.GapFill.Enabled,
		store:     runs,
		writer:    exporter.NewWriter(cfg.Output, registry, logger),
		outputDir: cfg.Output.Dir,
		logger:    infrastructure.WithComponent(logger, "run_service"),
	}, nil
}

// Submit runs the workbook and stores the result, failed or not. A failed
// run returns its response together with the pipeline error. When Persist
// is set the result is written under the output directory in a folder
// named after the run; a refused write returns ErrNotAccepted.
func (s *RunService) Submit(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.SourcePath == "" {
		return nil, fmt.Errorf("%w: source_path is required", ErrInvalidInput)
	}

	fill := s.fillGaps
	if req.FillGaps != nil {
		fill = *req.FillGaps
	}

	result, runErr := s.runners[fill].Run(ctx, req.SourcePath)
	if result == nil {
		return nil, runErr
	}
	if err := s.store.Put(result); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	resp := &RunResponse{Run: result.Summary(), Stages: result.Stages}
	if runErr != nil {
		return resp, runErr
	}

	if req.Persist {
		manifest, err := s.writer.Persist(result, exporter.PersistOptions{
			Formats:       req.Formats,
			AllowNonClean: req.AllowNonClean,
			Dir:           filepath.Join(s.outputDir, result.RunID),
		})
		if err != nil {
			return resp, err
		}
		resp.Manifest = manifest
	}

	s.logger.InfoContext(ctx, "run submitted",
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
		slog.Bool("persisted", resp.Manifest != nil))
	return resp, nil
}

// Get returns a stored run
func (s *RunService) Get(_ context.Context, id string) (*pipeline.Result, error) {
	return s.store.Get(id)
}

// List returns stored run summaries
func (s *RunService) List(_ context.Context, filter store.RunFilter) []pipeline.Summary {
	return s.store.List(filter)
}

// Records returns the filtered records of a stored run
func (s *RunService) Records(_ context.Context, id string, filter store.RecordFilter) ([]domain.CanonicalRecord, error) {
	return s.store.Records(id, filter)
}

// Delete forgets a stored run; persisted files are left in place
func (s *RunService) Delete(_ context.Context, id string) error {
	return s.store.Delete(id)
}

// Count returns the number of stored runs
func (s *RunService) Count() int {
	return len(s.store.List(store.RunFilter{}))
}
