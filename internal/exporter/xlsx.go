package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"tourismcli/pkg/contracts/domain"
)

// ObservationsSheet names the worksheet of the xlsx output
const ObservationsSheet = "observations"

// WriteXLSX writes the observation table to a single-sheet workbook.
// Numeric fields are stored as numbers, nulls as blank cells.
func WriteXLSX(path string, fields []string, records []domain.CanonicalRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ObservationsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(ObservationsSheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(fields), 18); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	header := make([]any, len(fields))
	for i, name := range fields {
		header[i] = name
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for r, rec := range records {
		row := make([]any, len(fields))
		for i, name := range fields {
			row[i] = cellValue(rec, name)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
