package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/pipeline"
	"tourismcli/internal/schema"
)

// PersistOptions controls one Persist call
type PersistOptions struct {
	// Formats overrides the configured table formats
	Formats []string
	// AllowNonClean persists results that finished with error-severity issues
	AllowNonClean bool
	// Dir overrides the configured output directory
	Dir string
}

// Manifest lists what Persist wrote
type Manifest struct {
	RunID string   `json:"run_id"`
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Writer persists accepted pipeline results
type Writer struct {
	cfg      config.OutputConfig
	registry *schema.Registry
	logger   *slog.Logger
}

// NewWriter creates a writer for the configured output directory
func NewWriter(cfg config.OutputConfig, registry *schema.Registry, logger *slog.Logger) *Writer {
	return &Writer{
		cfg:      cfg,
		registry: registry,
		logger:   infrastructure.WithComponent(logger, "exporter"),
	}
}

// Persist writes the observation table in each requested format, the
// validation report and the data dictionary. Results the caller has not
// accepted are refused with ErrNotAccepted and nothing is written.
func (w *Writer) Persist(result *pipeline.Result, opts PersistOptions) (*Manifest, error) {
	if err := result.Accept(pipeline.AcceptPolicy{AllowNonClean: opts.AllowNonClean}); err != nil {
		w.logger.Warn("result not persisted",
			slog.String("run_id", result.RunID),
			slog.String("status", string(result.Status)))
		return nil, err
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = w.cfg.Formats
	}
	for _, format := range formats {
		if !slices.Contains([]string{config.FormatCSV, config.FormatXLSX, config.FormatSnappy, config.FormatParquet}, format) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("unknown output format %q", format), nil)
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = w.cfg.Dir
	}
	if err := ValidateOutputDirectory(dir, w.logger); err != nil {
		return nil, apperrors.NewStorageError("output directory unavailable", err).WithContext("dir", dir)
	}

	manifest := &Manifest{RunID: result.RunID, Dir: dir}
	headers, rows := Table(w.registry, result.Records)

	for _, format := range formats {
		var (
			name string
			err  error
		)
		switch format {
		case config.FormatCSV:
			name = config.ObservationsCSV
			err = NewCSVWriter(dir, w.logger).WriteCSV(name, WriteOptions{
				Headers:   headers,
				Records:   rows,
				BOMPrefix: w.cfg.BOMPrefix,
			})
		case config.FormatXLSX:
			name = config.ObservationsXLSX
			err = WriteXLSX(filepath.Join(dir, name), headers, result.Records)
		case config.FormatSnappy:
			name = config.ObservationsSnappy
			err = WriteSnappyCSV(filepath.Join(dir, name), headers, rows, w.cfg.BOMPrefix)
		case config.FormatParquet:
			name = config.ObservationsParquet
			err = WriteParquet(filepath.Join(dir, name), w.registry.Fields(), result.Records)
		}
		if err != nil {
			return nil, apperrors.NewStorageError("failed to write "+name, err).WithContext("run_id", result.RunID)
		}
		manifest.Files = append(manifest.Files, name)
	}

	if err := writeJSON(filepath.Join(dir, config.ValidationReportJSON), result.Report); err != nil {
		return nil, apperrors.NewStorageError("failed to write validation report", err)
	}
	manifest.Files = append(manifest.Files, config.ValidationReportJSON)

	if err := writeJSON(filepath.Join(dir, config.DataDictionaryJSON), w.registry.Describe()); err != nil {
		return nil, apperrors.NewStorageError("failed to write data dictionary", err)
	}
	manifest.Files = append(manifest.Files, config.DataDictionaryJSON)

	w.logger.Info("result persisted",
		slog.String("run_id", result.RunID),
		slog.String("dir", dir),
		slog.Int("records", len(result.Records)),
		slog.Any("files", manifest.Files))
	return manifest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
