package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar quarter such as 2024-Q1.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

const (
	minPeriodYear = 1900
	maxPeriodYear = 2100
)

var (
	// periodLabelPattern is the canonical label grammar
	periodLabelPattern = regexp.MustCompile(`^\d{4}-Q[1-4]$`)

	yearQuarterPattern = regexp.MustCompile(`^(\d{4})\s*[-/]?\s*Q\s*([1-4])$`)
	quarterYearPattern = regexp.MustCompile(`^Q\s*([1-4])\s*[-/]?\s*(\d{4})$`)
	monthRangePattern  = regexp.MustCompile(`^([A-Z]{3,9})\s*(?:-|TO|–)\s*([A-Z]{3,9})\s*(\d{4})$`)
	yearMonthRange     = regexp.MustCompile(`^(\d{4})\s*([A-Z]{3,9})\s*(?:-|TO|–)\s*([A-Z]{3,9})$`)
	isoDatePattern     = regexp.MustCompile(`^(\d{4})-(\d{2})(?:-(\d{2}))?(?:[T ].*)?$`)

	// bare quarter tokens carry no year: "Q3", "Quarter 3", "Jul-Sep"
	bareQuarterPattern = regexp.MustCompile(`^(?:Q|QTR|QUARTER)\s*([1-4])$`)
	bareMonthRange     = regexp.MustCompile(`^([A-Z]{3,9})\s*(?:-|TO|–)\s*([A-Z]{3,9})$`)

	// footnoteSuffix strips revision and note markers like "(p)", "[note 3]" or "*"
	footnoteSuffix = regexp.MustCompile(`(\s*(\([^)]*\)|\[[^\]]*\]|\*+))+$`)
)

var monthNumbers = map[string]int{
	"JAN": 1, "JANUARY": 1,
	"FEB": 2, "FEBRUARY": 2,
	"MAR": 3, "MARCH": 3,
	"APR": 4, "APRIL": 4,
	"MAY": 5,
	"JUN": 6, "JUNE": 6,
	"JUL": 7, "JULY": 7,
	"AUG": 8, "AUGUST": 8,
	"SEP": 9, "SEPT": 9, "SEPTEMBER": 9,
	"OCT": 10, "OCTOBER": 10,
	"NOV": 11, "NOVEMBER": 11,
	"DEC": 12, "DECEMBER": 12,
}

// NewPeriod returns the period for year and quarter, validating both.
func NewPeriod(year, quarter int) (Period, error) {
	p := Period{Year: year, Quarter: quarter}
	if !p.Valid() {
		return Period{}, fmt.Errorf("invalid period %d Q%d", year, quarter)
	}
	return p, nil
}

// MustPeriod is NewPeriod for constants in tests and tables.
func MustPeriod(year, quarter int) Period {
	p, err := NewPeriod(year, quarter)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodFromTime returns the quarter containing t.
func PeriodFromTime(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// normalisePeriodLabel upper-cases a period label and strips footnote markers
func normalisePeriodLabel(s string) string {
	label := strings.ToUpper(strings.TrimSpace(s))
	label = strings.TrimSpace(footnoteSuffix.ReplaceAllString(label, ""))
	return strings.Join(strings.Fields(label), " ")
}

// ParsePeriod parses the quarter labels used across release workbooks.
func ParsePeriod(s string) (Period, error) {
	label := normalisePeriodLabel(s)
	if label == "" {
		return Period{}, fmt.Errorf("empty period label")
	}

	if m := yearQuarterPattern.FindStringSubmatch(label); m != nil {
		return periodFromParts(m[1], m[2], s)
	}
	if m := quarterYearPattern.FindStringSubmatch(label); m != nil {
		return periodFromParts(m[2], m[1], s)
	}
	if m := monthRangePattern.FindStringSubmatch(label); m != nil {
		return periodFromMonths(m[3], m[1], m[2], s)
	}
	if m := yearMonthRange.FindStringSubmatch(label); m != nil {
		return periodFromMonths(m[1], m[2], m[3], s)
	}
	if m := isoDatePattern.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Period{}, fmt.Errorf("invalid month in period label %q", s)
		}
		return NewPeriod(year, (month-1)/3+1)
	}
	return Period{}, fmt.Errorf("unrecognised period label %q", s)
}

// ParseQuarter parses a quarter heading that carries no year, as found
// under a separate year heading or next to a year column.
func ParseQuarter(s string) (int, error) {
	label := normalisePeriodLabel(s)
	if m := bareQuarterPattern.FindStringSubmatch(label); m != nil {
		q, _ := strconv.Atoi(m[1])
		return q, nil
	}
	if m := bareMonthRange.FindStringSubmatch(label); m != nil {
		from, okFrom := monthNumbers[m[1]]
		to, okTo := monthNumbers[m[2]]
		if okFrom && okTo && from%3 == 1 && to == from+2 {
			return (from-1)/3 + 1, nil
		}
	}
	return 0, fmt.Errorf("unrecognised quarter label %q", s)
}

func periodFromParts(yearStr, quarterStr, original string) (Period, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Period{}, fmt.Errorf("invalid year in period label %q", original)
	}
	quarter, _ := strconv.Atoi(quarterStr)
	return NewPeriod(year, quarter)
}

func periodFromMonths(yearStr, fromMonth, toMonth, original string) (Period, error) {
	from, ok := monthNumbers[fromMonth]
	if !ok {
		return Period{}, fmt.Errorf("unrecognised month %q in period label %q", fromMonth, original)
	}
	to, ok := monthNumbers[toMonth]
	if !ok {
		return Period{}, fmt.Errorf("unrecognised month %q in period label %q", toMonth, original)
	}
	// A quarter label must span exactly one calendar quarter.
	if from%3 != 1 || to != from+2 {
		return Period{}, fmt.Errorf("month range in %q is not a calendar quarter", original)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Period{}, fmt.Errorf("invalid year in period label %q", original)
	}
	return NewPeriod(year, (from-1)/3+1)
}

// IsPeriodLabel reports whether s is a canonical YYYY-Qn label.
func IsPeriodLabel(s string) bool {
	return periodLabelPattern.MatchString(s)
}

// Valid reports whether the period has a plausible year and a quarter in 1..4.
func (p Period) Valid() bool {
	return p.Year >= minPeriodYear && p.Year <= maxPeriodYear && p.Quarter >= 1 && p.Quarter <= 4
}

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// String returns the canonical label, e.g. 2024-Q1.
func (p Period) String() string {
	return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
}

// Start returns the first day of the quarter in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month((p.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// Date returns the ISO quarter start date used in the output dataset.
func (p Period) Date() string {
	return p.Start().Format("2006-01-02")
}

// Index is a monotonically increasing quarter number, handy for distances.
func (p Period) Index() int {
	return p.Year*4 + p.Quarter - 1
}

// Next returns the following quarter.
func (p Period) Next() Period {
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Compare returns -1, 0 or 1.
func (p Period) Compare(o Period) int {
	switch a, b := p.Index(), o.Index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	return p.Index() < o.Index()
}

// QuartersBetween returns the quarters strictly between a and b.
func QuartersBetween(a, b Period) []Period {
	if b.Index()-a.Index() <= 1 {
		return nil
	}
	out := make([]Period, 0, b.Index()-a.Index()-1)
	for p := a.Next(); p.Before(b); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// MarshalText renders the canonical label.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any label ParsePeriod understands.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
