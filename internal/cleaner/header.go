package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"tourismcli/internal/config"
	apperrors "tourismcli/internal/errors"
	"tourismcli/pkg/contracts/domain"
)

type columnRole int

const (
	roleNone columnRole = iota
	rolePeriodAxis
	roleYearAxis
	roleCategoryAxis
	roleValue
)

// layout says which axis carries the periods
type layout int

const (
	// periodRows has one row per quarter and categories across the columns
	periodRows layout = iota
	// periodColumns has quarters across the columns and one row per category
	periodColumns
)

func (l layout) String() string {
	if l == periodColumns {
		return "period_columns"
	}
	return "period_rows"
}

// column is the flattened descriptor of one header column
type column struct {
	index     int
	role      columnRole
	period    domain.Period
	hasPeriod bool
	metric    domain.MetricType
	category  string
	interval  bool
	// units found in the labels, most specific (lowest) first
	units    []unit
	labelled bool
}

// tableCaption matches sheet titles such as "Table 3: ..." or "Figure 2a. ..."
var tableCaption = regexp.MustCompile(`(?i)^(table|figure|chart)\s+[a-z]?\d+[a-z]?\s*[:.\-–]`)

// captionHints is what the title and note rows above a header say about
// every column: a metric when they name exactly one, and any units
type captionHints struct {
	metric domain.MetricType
	// nearest the header first
	units []unit
}

// header is the repaired header block of one sheet
type header struct {
	start, end   int
	layout       layout
	periodAxis   int
	yearAxis     int
	categoryAxis int
	values       []*column
	caption      captionHints
}

// fillMerges copies the top-left value of every merged range across the range
func fillMerges(raw domain.RawTable) ([][]string, error) {
	grid := make([][]string, len(raw.Rows))
	for i, row := range raw.Rows {
		grid[i] = append([]string(nil), row...)
	}

	for _, m := range raw.Merges {
		c1, r1, err := excelize.CellNameToCoordinates(m.StartCell)
		if err != nil {
			return nil, fmt.Errorf("merged range %s:%s: %w", m.StartCell, m.EndCell, err)
		}
		c2, r2, err := excelize.CellNameToCoordinates(m.EndCell)
		if err != nil {
			return nil, fmt.Errorf("merged range %s:%s: %w", m.StartCell, m.EndCell, err)
		}
		for len(grid) < r2 {
			grid = append(grid, nil)
		}
		value := m.Value
		if value == "" && c1-1 < len(grid[r1-1]) {
			value = grid[r1-1][c1-1]
		}
		for r := r1 - 1; r < r2; r++ {
			for len(grid[r]) < c2 {
				grid[r] = append(grid[r], "")
			}
			for c := c1 - 1; c < c2; c++ {
				grid[r][c] = value
			}
		}
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	for i := range grid {
		for len(grid[i]) < width {
			grid[i] = append(grid[i], "")
		}
	}
	return grid, nil
}

// detectHeader finds, flattens and classifies the header block
func (c *Cleaner) detectHeader(sheet string, grid [][]string, override config.SheetMapping) (*header, error) {
	limit := c.headerScanMax
	if limit > len(grid) {
		limit = len(grid)
	}

	var captions []string
	start := -1
	for r := 0; r < limit && start < 0; r++ {
		row := grid[r]
		if blankRow(row) || c.rowHasData(row) {
			continue
		}
		if text, ok := captionText(row); ok {
			captions = append(captions, text)
			continue
		}
		if c.hasHeaderToken(row) {
			start = r
		}
	}
	if start < 0 {
		return nil, apperrors.MalformedHeader(sheet, fmt.Sprintf("no header row in the first %d rows", limit))
	}

	end := start + 1
	if override.HeaderRows > 0 {
		end = start + override.HeaderRows
		if end > len(grid) {
			end = len(grid)
		}
	} else {
		for r := start + 1; r < len(grid) && r < start+c.headerScanMax; r++ {
			if blankRow(grid[r]) {
				continue
			}
			if c.rowHasData(grid[r]) {
				break
			}
			end = r + 1
		}
	}

	rows, own := flattenHeader(grid[start:end], c.vocab)
	h := &header{
		start:        start,
		end:          end,
		periodAxis:   -1,
		yearAxis:     -1,
		categoryAxis: -1,
		caption:      c.captionHints(captions),
	}

	width := len(grid[0])
	columns := make([]*column, width)
	for col := 0; col < width; col++ {
		cm, err := c.describeColumn(col, rows, own)
		if err != nil {
			return nil, apperrors.MalformedHeader(sheet, fmt.Sprintf("column %s: %v", columnName(col), err))
		}
		if cm.role == roleNone && columnHasData(grid[end:], col) {
			cm.role = roleValue
		}
		if cm.role == roleValue && !cm.labelled && !columnHasData(grid[end:], col) {
			cm.role = roleNone
		}
		columns[col] = cm
	}

	return h, c.resolveLayout(sheet, h, columns, grid)
}

// captionText returns the text of a title or note row: a "Table N:" caption,
// a lone cell in the first column, or one value merged across the row
func captionText(row []string) (string, bool) {
	first := -1
	for i, cell := range row {
		if strings.TrimSpace(cell) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return "", false
	}
	text := strings.TrimSpace(row[first])
	if tableCaption.MatchString(text) {
		return text, true
	}
	if first != 0 || len(row) < 2 {
		return "", false
	}
	for _, cell := range row[1:] {
		if t := strings.TrimSpace(cell); t != "" && t != text {
			return "", false
		}
	}
	return text, true
}

// hasHeaderToken reports whether any cell of row reads as a header label.
// Cells that do not classify are reported later, column by column.
func (c *Cleaner) hasHeaderToken(row []string) bool {
	for _, cell := range row {
		if lbl, err := c.vocab.classify(cell); err == nil && lbl.headerToken() {
			return true
		}
	}
	return false
}

// captionHints collects the metric and units named by the caption rows
func (c *Cleaner) captionHints(captions []string) captionHints {
	var hints captionHints
	var metrics []domain.MetricType
	seen := make(map[domain.MetricType]bool)

	for i := len(captions) - 1; i >= 0; i-- {
		text := captions[i]
		if u, ok := detectUnit(text); ok && u != unitPercent {
			hints.units = append(hints.units, u)
		}
		for _, m := range c.vocab.metricsIn(text) {
			if !seen[m] {
				seen[m] = true
				metrics = append(metrics, m)
			}
		}
	}
	if len(metrics) == 1 {
		hints.metric = metrics[0]
	}
	return hints
}

// flattenHeader carries group labels right across the blank cells of every
// header row but the last, skipping blank rows. own marks cells that were not
// filled by carrying.
func flattenHeader(block [][]string, vocab *vocabulary) ([][]string, [][]bool) {
	var rows [][]string
	var own [][]bool
	for _, row := range block {
		if blankRow(row) {
			continue
		}
		cells := make([]string, len(row))
		marks := make([]bool, len(row))
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			marks[i] = cells[i] != ""
		}
		rows = append(rows, cells)
		own = append(own, marks)
	}

	for i := 0; i < len(rows)-1; i++ {
		carry := ""
		for col, cell := range rows[i] {
			if cell == "" {
				rows[i][col] = carry
				continue
			}
			carry = cell
			if lbl, err := vocab.classify(cell); err == nil && lbl.axis() {
				carry = ""
			}
		}
	}
	return rows, own
}

// describeColumn classifies one column from its header labels, top to bottom
func (c *Cleaner) describeColumn(col int, rows [][]string, own [][]bool) (*column, error) {
	cm := &column{index: col}
	var units []unit
	var year, quarter int

	for i, row := range rows {
		lbl, err := c.vocab.classify(row[col])
		if err != nil {
			return nil, err
		}
		if own[i][col] {
			cm.labelled = true
		}

		switch lbl.kind {
		case kindPeriodAxis:
			cm.role = rolePeriodAxis
		case kindYearAxis:
			if cm.role != rolePeriodAxis {
				cm.role = roleYearAxis
			}
		case kindYear:
			if year != 0 && year != lbl.year {
				return nil, fmt.Errorf("labelled with both %d and %d", year, lbl.year)
			}
			year = lbl.year
		case kindQuarter:
			if quarter != 0 && quarter != lbl.quarter {
				return nil, fmt.Errorf("labelled with both Q%d and Q%d", quarter, lbl.quarter)
			}
			quarter = lbl.quarter
		case kindCategoryAxis:
			if cm.role != rolePeriodAxis {
				cm.role = roleCategoryAxis
			}
		case kindPeriod:
			if cm.hasPeriod && cm.period != lbl.period {
				return nil, fmt.Errorf("labelled with both %s and %s", cm.period, lbl.period)
			}
			cm.period, cm.hasPeriod = lbl.period, true
		case kindMetric, kindInterval, kindCategory:
			if lbl.metric != "" {
				if cm.metric != "" && cm.metric != lbl.metric {
					return nil, fmt.Errorf("labelled with both %s and %s", cm.metric, lbl.metric)
				}
				cm.metric = lbl.metric
			}
			if lbl.category != "" {
				cm.category = lbl.category
			}
			if lbl.interval {
				cm.interval = true
			}
		}
		if lbl.unit != unitNone && lbl.unit != unitPercent {
			units = append(units, lbl.unit)
		}
	}

	// A year heading over a bare quarter heading makes one period.
	if quarter != 0 {
		if year == 0 {
			return nil, fmt.Errorf("quarter heading Q%d has no year above it", quarter)
		}
		p, err := domain.NewPeriod(year, quarter)
		if err != nil {
			return nil, err
		}
		if cm.hasPeriod && cm.period != p {
			return nil, fmt.Errorf("labelled with both %s and %s", cm.period, p)
		}
		cm.period, cm.hasPeriod = p, true
	}

	if cm.role == roleNone && (cm.hasPeriod || cm.metric != "" || cm.category != "" || cm.interval) {
		cm.role = roleValue
	}
	for i := len(units) - 1; i >= 0; i-- {
		cm.units = append(cm.units, units[i])
	}
	return cm, nil
}

// resolveLayout picks the period and category axes and the value columns
func (c *Cleaner) resolveLayout(sheet string, h *header, columns []*column, grid [][]string) error {
	data := grid[h.end:]
	periodCols := 0

	for _, cm := range columns {
		switch cm.role {
		case rolePeriodAxis:
			if h.periodAxis >= 0 {
				return apperrors.MalformedHeader(sheet, fmt.Sprintf("columns %s and %s are both period axes", columnName(h.periodAxis), columnName(cm.index)))
			}
			h.periodAxis = cm.index
		case roleYearAxis:
			if h.yearAxis >= 0 {
				return apperrors.MalformedHeader(sheet, fmt.Sprintf("columns %s and %s are both year axes", columnName(h.yearAxis), columnName(cm.index)))
			}
			h.yearAxis = cm.index
		case roleCategoryAxis:
			if h.categoryAxis < 0 {
				h.categoryAxis = cm.index
			}
		case roleValue:
			if cm.hasPeriod {
				periodCols++
			}
		}
	}

	// Unlabelled quarter column beside a year column.
	if h.yearAxis >= 0 && h.periodAxis < 0 && periodCols == 0 {
		for _, cm := range columns {
			if cm.labelled || cm.role != roleValue {
				continue
			}
			if token, ok := firstNonBlank(data, cm.index); ok {
				if _, ok := parseQuarterCell(token); ok {
					cm.role = rolePeriodAxis
					h.periodAxis = cm.index
				}
			}
			break
		}
	}

	// Unlabelled period axis: the first column whose data starts with a quarter.
	if h.periodAxis < 0 && periodCols == 0 {
		for _, cm := range columns {
			if cm.role == roleCategoryAxis || cm.role == roleYearAxis {
				continue
			}
			if token, ok := firstNonBlank(data, cm.index); ok {
				if _, ok := parsePeriodCell(token); ok {
					cm.role = rolePeriodAxis
					h.periodAxis = cm.index
					break
				}
			}
		}
	}

	if h.yearAxis >= 0 && h.periodAxis < 0 {
		return apperrors.MalformedHeader(sheet, fmt.Sprintf("year column %s has no quarter column beside it", columnName(h.yearAxis)))
	}

	switch {
	case h.periodAxis >= 0 && periodCols > 0:
		return apperrors.MalformedHeader(sheet, "quarters appear both down the rows and across the columns")
	case h.periodAxis < 0 && periodCols == 0:
		return apperrors.MalformedHeader(sheet, "no period axis or quarter headings found")
	case h.periodAxis >= 0:
		h.layout = periodRows
	default:
		h.layout = periodColumns
	}

	if h.layout == periodColumns && h.categoryAxis < 0 {
		for _, cm := range columns {
			if cm.role != roleValue || cm.hasPeriod {
				continue
			}
			if token, ok := firstNonBlank(data, cm.index); ok {
				if kind, _ := c.classifyCell(token); kind == cellText {
					cm.role = roleCategoryAxis
					h.categoryAxis = cm.index
				}
			}
			break
		}
		if h.categoryAxis < 0 {
			return apperrors.MalformedHeader(sheet, "quarters run across the columns but no category column was found")
		}
	}

	var last *column
	for _, cm := range columns {
		if cm.role != roleValue {
			continue
		}
		if h.layout == periodColumns && !cm.hasPeriod {
			return apperrors.MalformedHeader(sheet, fmt.Sprintf("column %s has no quarter heading", columnName(cm.index)))
		}
		if cm.interval && last != nil && (h.layout == periodRows || last.period == cm.period) {
			if cm.category == "" {
				cm.category = last.category
			}
			if cm.metric == "" {
				cm.metric = last.metric
			}
		}
		if !cm.interval {
			last = cm
		}
		h.values = append(h.values, cm)
	}
	if len(h.values) == 0 {
		return apperrors.MalformedHeader(sheet, "no value columns")
	}
	return nil
}

// checkColumns rejects value columns that cannot be resolved without row labels
func (h *header) checkColumns(sheet string, override domain.MetricType) error {
	type slot struct {
		period   domain.Period
		category string
		metric   domain.MetricType
		interval bool
	}
	seen := make(map[slot]int)

	for _, cm := range h.values {
		metric := cm.metric
		if override != "" {
			metric = override
		}
		if metric == "" {
			metric = h.caption.metric
		}
		if metric == "" {
			if h.layout == periodRows {
				return apperrors.MalformedHeader(sheet, fmt.Sprintf("column %s has no metric", columnName(cm.index)))
			}
			continue
		}
		if h.categoryAxis >= 0 {
			continue
		}
		key := slot{period: cm.period, category: cm.category, metric: metric, interval: cm.interval}
		if prev, ok := seen[key]; ok {
			return apperrors.MalformedHeader(sheet, fmt.Sprintf("columns %s and %s hold the same series", columnName(prev), columnName(cm.index)))
		}
		seen[key] = cm.index
	}
	return nil
}

func (c *Cleaner) rowHasData(row []string) bool {
	for _, cell := range row {
		switch kind, v := c.classifyCell(cell); kind {
		case cellSentinel:
			return true
		case cellNumber:
			if !isYear(v) {
				return true
			}
		}
	}
	return false
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func columnHasData(rows [][]string, col int) bool {
	_, ok := firstNonBlank(rows, col)
	return ok
}

func firstNonBlank(rows [][]string, col int) (string, bool) {
	for _, row := range rows {
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			return row[col], true
		}
	}
	return "", false
}

func columnName(col int) string {
	name, _ := excelize.ColumnNumberToName(col + 1)
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1)
	return name
}
