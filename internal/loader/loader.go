package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
	"tourismcli/pkg/contracts/domain"
)

// SheetInfo summarises one worksheet for inspection
type SheetInfo struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Merges  int    `json:"merges"`
	Visible bool   `json:"visible"`
}

// Loader reads release workbooks into raw tables
type Loader struct {
	logger *slog.Logger
}

// New creates a loader
func New(logger *slog.Logger) *Loader {
	return &Loader{logger: infrastructure.WithComponent(logger, "loader")}
}

// Load returns one RawTable per mapping, in mapping order. Cell text is
// raw (unformatted numbers, date serials) and merged ranges are reported
// but left unresolved.
func (l *Loader) Load(ctx context.Context, path string, mappings []config.SheetMapping) ([]domain.RawTable, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	tables := make([]domain.RawTable, 0, len(mappings))

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, index, ok := matchSheet(sheets, m.Sheet)
		if !ok {
			return nil, apperrors.SheetMissing(path, m.Sheet, sheets)
		}

		table, err := readSheet(f, name)
		if err != nil {
			return nil, apperrors.UnreadableFormat(path, err).WithContext("sheet", name)
		}
		table.Sheet = m.Sheet
		table.Dimension = domain.DimensionType(m.Dimension)
		table.SheetIndex = index

		l.logger.DebugContext(ctx, "sheet loaded",
			slog.String("sheet", name),
			slog.String("dimension", m.Dimension),
			slog.Int("rows", len(table.Rows)),
			slog.Int("merges", len(table.Merges)))
		tables = append(tables, table)
	}

	l.logger.InfoContext(ctx, "workbook loaded",
		slog.String("path", path),
		slog.Int("sheets", len(tables)))
	return tables, nil
}

// ListSheets describes every worksheet of the workbook at path
func ListSheets(path string) ([]SheetInfo, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var infos []SheetInfo
	for i, name := range f.GetSheetList() {
		table, err := readSheet(f, name)
		if err != nil {
			return nil, apperrors.UnreadableFormat(path, err).WithContext("sheet", name)
		}
		visible, _ := f.GetSheetVisible(name)
		info := SheetInfo{
			Name:    name,
			Index:   i,
			Rows:    len(table.Rows),
			Merges:  len(table.Merges),
			Visible: visible,
		}
		if len(table.Rows) > 0 {
			info.Columns = len(table.Rows[0])
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func open(path string) (*excelize.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.SourceNotFound(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.SourceNotFound(path, fmt.Errorf("%s is a directory", path))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.UnreadableFormat(path, err)
	}
	return f, nil
}

func readSheet(f *excelize.File, name string) (domain.RawTable, error) {
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read rows: %w", err)
	}
	merged, err := f.GetMergeCells(name)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read merged cells: %w", err)
	}

	table := domain.RawTable{Rows: pad(rows)}
	for _, mc := range merged {
		table.Merges = append(table.Merges, domain.MergeRange{
			StartCell: mc.GetStartAxis(),
			EndCell:   mc.GetEndAxis(),
			Value:     mc.GetCellValue(),
		})
	}
	return table, nil
}

// pad makes every row as wide as the widest one
func pad(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}

// matchSheet finds a sheet by exact name, then ignoring case and spacing.
// Release workbooks often carry stray trailing spaces in sheet names.
func matchSheet(sheets []string, want string) (string, int, bool) {
	for i, name := range sheets {
		if name == want {
			return name, i, true
		}
	}
	key := normaliseSheetName(want)
	for i, name := range sheets {
		if normaliseSheetName(name) == key {
			return name, i, true
		}
	}
	return "", -1, false
}

func normaliseSheetName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
