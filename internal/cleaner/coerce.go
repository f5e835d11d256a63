package cleaner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tourismcli/pkg/contracts/domain"
)

var (
	// footnoteMarkers are trailing revision and note markers: "*", "†", "(p)", "[note 3]"
	footnoteMarkers = regexp.MustCompile(`(?i)(\s*(\*+|†|‡|\[[^\]]*\]|\((p|r|e|x|provisional|revised|note[^)]*)\)))+$`)

	numberNoise = strings.NewReplacer(",", "", "£", "", "%", "", " ", "", "\u00a0", "", "\u2009", "", "\u202f", "")
)

// Excel stores dates as day serials; period-axis numbers in this range are dates.
const (
	minDateSerial = 18264.0 // 1950-01-01
	maxDateSerial = 73415.0 // 2100-12-31
)

type cellKind int

const (
	cellBlank cellKind = iota
	cellSentinel
	cellNumber
	cellText
)

// classifyCell coerces a data cell. Sentinels and blanks are missing values.
func (c *Cleaner) classifyCell(token string) (cellKind, float64) {
	t := strings.TrimSpace(token)
	if t == "" {
		return cellBlank, 0
	}
	if c.sentinels[strings.ToLower(t)] {
		return cellSentinel, 0
	}
	if v, ok := parseNumber(t); ok {
		return cellNumber, v
	}
	return cellText, 0
}

// parseNumber accepts thousands separators, currency and percent signs and
// trailing footnote markers.
func parseNumber(s string) (float64, bool) {
	s = footnoteMarkers.ReplaceAllString(strings.TrimSpace(s), "")
	s = numberNoise.Replace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isYear reports whether v looks like a bare year label rather than a value
func isYear(v float64) bool {
	return v == float64(int(v)) && v >= 1900 && v <= 2100
}

// parseYear reads a bare year label such as "2023" or "2023 (p)"
func parseYear(token string) (int, bool) {
	v, ok := parseNumber(token)
	if !ok || !isYear(v) {
		return 0, false
	}
	return int(v), true
}

// parseQuarterCell reads a quarter-axis cell that sits beside a year column:
// "Q3", "Jul-Sep" or a bare quarter number
func parseQuarterCell(token string) (int, bool) {
	t := strings.TrimSpace(token)
	if q, err := domain.ParseQuarter(t); err == nil {
		return q, true
	}
	if q, err := strconv.Atoi(t); err == nil && q >= 1 && q <= 4 {
		return q, true
	}
	return 0, false
}

// parsePeriodCell reads a period-axis cell: a quarter label or an Excel date serial.
func parsePeriodCell(token string) (domain.Period, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return domain.Period{}, false
	}
	if p, err := domain.ParsePeriod(t); err == nil {
		return p, true
	}
	if v, err := strconv.ParseFloat(t, 64); err == nil && v >= minDateSerial && v <= maxDateSerial {
		tm, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return domain.Period{}, false
		}
		return domain.PeriodFromTime(tm), true
	}
	return domain.Period{}, false
}
