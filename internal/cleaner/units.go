package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"tourismcli/internal/config"
	"tourismcli/pkg/contracts/domain"
)

// unit is a source unit as written in a header
type unit string

const (
	unitNone            unit = ""
	unitCount           unit = "count"
	unitThousands       unit = "thousands"
	unitMillions        unit = "millions"
	unitPounds          unit = "pounds"
	unitPoundsThousands unit = "pounds_thousands"
	unitPoundsMillions  unit = "pounds_millions"
	unitPoundsBillions  unit = "pounds_billions"
	unitPercent         unit = "percent"
)

var (
	monetaryPattern = regexp.MustCompile(`£|\bgbp\b|\bpounds?\b|\bsterling\b`)
	billionPattern  = regexp.MustCompile(`\b(bn|billions?)\b`)
	millionPattern  = regexp.MustCompile(`\b(m|mn|millions?)\b`)
	thousandPattern = regexp.MustCompile(`\b(k|thousands?)\b|(^|[^\d])'?000s?\b`)
	percentPattern  = regexp.MustCompile(`%|\bper ?cent\b`)
)

var unitWords = map[string]bool{
	"thousand": true, "thousands": true, "000": true, "000s": true, "k": true,
	"million": true, "millions": true, "m": true, "mn": true,
	"billion": true, "billions": true, "bn": true,
	"gbp": true, "pound": true, "pounds": true, "sterling": true,
	"percent": true, "per": true, "cent": true,
	// filler in unit notes such as "Figures in thousands"
	"figures": true, "values": true, "in": true, "are": true, "all": true, "shown": true,
}

// detectUnit reads the unit written in a header label
func detectUnit(s string) (unit, bool) {
	l := strings.ToLower(s)
	l = strings.ReplaceAll(l, "£", " £ ")

	if monetaryPattern.MatchString(l) {
		switch {
		case billionPattern.MatchString(l):
			return unitPoundsBillions, true
		case millionPattern.MatchString(l):
			return unitPoundsMillions, true
		case thousandPattern.MatchString(l):
			return unitPoundsThousands, true
		default:
			return unitPounds, true
		}
	}
	switch {
	case millionPattern.MatchString(l):
		return unitMillions, true
	case thousandPattern.MatchString(l):
		return unitThousands, true
	case percentPattern.MatchString(l):
		return unitPercent, true
	}
	return unitNone, false
}

// parseUnit accepts a canonical unit name or header-style unit text
func parseUnit(s string) (unit, error) {
	switch u := unit(strings.ToLower(strings.TrimSpace(s))); u {
	case unitCount, unitThousands, unitMillions, unitPounds, unitPoundsThousands, unitPoundsMillions, unitPoundsBillions:
		return u, nil
	}
	if u, ok := detectUnit(s); ok && u != unitPercent {
		return u, nil
	}
	return unitNone, fmt.Errorf("unrecognised unit %q", s)
}

func isUnitOnly(norm string) bool {
	for _, w := range strings.Fields(norm) {
		if !unitWords[w] {
			return false
		}
	}
	return true
}

func (u unit) monetary() bool {
	switch u {
	case unitPounds, unitPoundsThousands, unitPoundsMillions, unitPoundsBillions:
		return true
	}
	return false
}

// appliesTo reports whether values in u can be normalised for metric m
func (u unit) appliesTo(m domain.MetricType) bool {
	switch u {
	case unitNone, unitPercent:
		return false
	}
	return u.monetary() == (m == domain.MetricExpenditure)
}

// defaultUnit is assumed when a header carries no unit
func defaultUnit(m domain.MetricType) unit {
	if m == domain.MetricExpenditure {
		return unitPoundsMillions
	}
	return unitCount
}

func factorFor(u unit, f config.UnitFactors) float64 {
	switch u {
	case unitThousands:
		return f.Thousands
	case unitMillions:
		return f.Millions
	case unitPounds:
		return f.Pounds
	case unitPoundsThousands:
		return f.PoundsThousands
	case unitPoundsMillions:
		return f.PoundsMillions
	case unitPoundsBillions:
		return f.PoundsBillions
	}
	return 1
}

// UnitLedger records the source unit each metric was normalised from, per sheet
type UnitLedger []domain.UnitEntry

func (l *UnitLedger) add(entry domain.UnitEntry) {
	for _, e := range *l {
		if e.Sheet == entry.Sheet && e.Metric == entry.Metric && e.SourceUnit == entry.SourceUnit {
			return
		}
	}
	*l = append(*l, entry)
}

// Merge appends the entries of other not already recorded
func (l *UnitLedger) Merge(other UnitLedger) {
	for _, e := range other {
		l.add(e)
	}
}
