package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ValidateOutputDirectory ensures dir exists or can be created, and that a
// file can be written into it
func ValidateOutputDirectory(dir string, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		logger.Error("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	logger.Debug("output directory validated", slog.String("directory", dir))
	return nil
}
