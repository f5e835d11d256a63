package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"tourismcli/internal/infrastructure"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files under one output directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	return &CSVWriter{dir: dir, logger: infrastructure.WithComponent(logger, "csv_writer")}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // UTF-8 BOM so Excel detects the encoding
}

// WriteCSV writes data to a CSV file with the given options, replacing any
// existing file
func (w *CSVWriter) WriteCSV(name string, options WriteOptions) error {
	fullPath := w.resolvePath(name)

	w.logger.Info("writing CSV file",
		slog.String("file_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	sw, err := NewStreamWriter(file, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}
	for i, record := range options.Records {
		if err := sw.WriteRecord(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// resolvePath joins relative names onto the output directory
func (w *CSVWriter) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}

// StreamWriter writes CSV rows to any writer, for plain and compressed output
type StreamWriter struct {
	writer  *csv.Writer
	headers []string
	started bool
}

// NewStreamWriter writes the optional BOM immediately; headers are written
// with the first record, or on Flush when there are no records.
func NewStreamWriter(out io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	return &StreamWriter{writer: csv.NewWriter(out), headers: headers}, nil
}

func (s *StreamWriter) start() error {
	if s.started {
		return nil
	}
	s.started = true
	if len(s.headers) == 0 {
		return nil
	}
	if err := s.writer.Write(s.headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	return nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	if err := s.start(); err != nil {
		return err
	}
	return s.writer.Write(record)
}

// Flush writes any buffered rows
func (s *StreamWriter) Flush() error {
	if err := s.start(); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}
