package exporter

import (
	"fmt"
	"os"

	"github.com/golang/snappy"
)

// WriteSnappyCSV writes the table as snappy-framed CSV. Readers decode it
// with snappy.NewReader.
func WriteSnappyCSV(path string, headers []string, rows [][]string, bom bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := snappy.NewBufferedWriter(file)
	sw, err := NewStreamWriter(zw, headers, bom)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := sw.WriteRecord(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close snappy stream: %w", err)
	}
	return file.Close()
}
