package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetFixture describes one worksheet of a generated workbook.
type SheetFixture struct {
	Name string
	// Rows are written from A1; nil cells are left blank.
	Rows [][]any
	// Merges are pairs of corner cells, e.g. {"B1", "C1"}.
	Merges [][2]string
}

// WriteWorkbook saves the sheets to name under a temp dir and returns the path.
func WriteWorkbook(t *testing.T, name string, sheets ...SheetFixture) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			t.Fatalf("new sheet %q: %v", sheet.Name, err)
		}

		for r, row := range sheet.Rows {
			for c, val := range row {
				if val == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(sheet.Name, cell, val); err != nil {
					t.Fatalf("set %s!%s: %v", sheet.Name, cell, err)
				}
			}
		}
		for _, m := range sheet.Merges {
			if err := f.MergeCell(sheet.Name, m[0], m[1]); err != nil {
				t.Fatalf("merge %s:%s: %v", m[0], m[1], err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save temp workbook: %v", err)
	}
	return path
}

// PurposeSheet is a small wide-layout sheet: one row per quarter, one
// visits column per purpose, counts in thousands.
func PurposeSheet() SheetFixture {
	return SheetFixture{
		Name: "Purpose",
		Rows: [][]any{
			{"Table 3: Visits by purpose (thousands)"},
			{"Quarter", "Holiday", "Business", "VFR", "Miscellaneous"},
			{"2023 Q3", 3100, 1800, 2500, "412"},
			{"2023 Q4", 2900, 1700, 2400, ".."},
			{"2024 Q1", 2500, 1600, 2200, 300},
			{"Source: International Passenger Survey"},
		},
	}
}

// TransportSheet reports visits and expenditure per mode with a two-row header.
func TransportSheet() SheetFixture {
	return SheetFixture{
		Name: "Transport",
		Rows: [][]any{
			{"Period", "Visits (thousands)", nil, "Spending (£ million)", nil},
			{nil, "Air", "Sea", "Air", "Sea"},
			{"2023 Q4", 7000, 900, 5400.5, 320},
			{"2024 Q1", 6100, 800, 4800, 290.25},
		},
		Merges: [][2]string{{"B1", "C1"}, {"D1", "E1"}},
	}
}
