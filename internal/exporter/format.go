package exporter

import (
	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

// Table renders records as rows in registry field order. Nulls are empty
// cells and floats use the shortest exact representation.
func Table(registry *schema.Registry, records []domain.CanonicalRecord) ([]string, [][]string) {
	headers := registry.FieldNames()
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, recordRow(headers, rec))
	}
	return headers, rows
}

func recordRow(fields []string, rec domain.CanonicalRecord) []string {
	row := make([]string, len(fields))
	for i, name := range fields {
		row[i], _ = rec.FormatValue(name)
	}
	return row
}

// cellValue returns the typed value of a field for spreadsheet output; nil
// leaves the cell blank
func cellValue(rec domain.CanonicalRecord, field string) any {
	v, ok := rec.Value(field)
	if !ok {
		return nil
	}
	if f, isFloat := v.(*float64); isFloat {
		if f == nil {
			return nil
		}
		return *f
	}
	return v
}
