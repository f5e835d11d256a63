package cleaner

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

var (
	// bracketed holds parenthesised units and bracketed notes, e.g. "(£m)" or "[note 2]"
	bracketed = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	intervalPattern = regexp.MustCompile(`(?i)\bci\b|confidence interval|\+/-|±|margin of error`)
	// confidenceLevel is the "95%" in "95% CI"
	confidenceLevel = regexp.MustCompile(`\b\d{2}(\.\d+)?\s*%`)
)

// Axis labels name a column that carries periods or categories rather than values.
var (
	periodAxisLabels = map[string]bool{
		"quarter":          true,
		"period":           true,
		"date":             true,
		"time period":      true,
		"reference period": true,
		"year and quarter": true,
		"year quarter":     true,
		"quarter and year": true,
	}
	// yearAxisLabels head a column of years beside a column of bare quarters
	yearAxisLabels = map[string]bool{
		"year":          true,
		"calendar year": true,
	}
	categoryAxisLabels = map[string]bool{
		"country":              true,
		"country of residence": true,
		"region":               true,
		"uk region":            true,
		"region visited":       true,
		"region of visit":      true,
		"purpose":              true,
		"purpose of visit":     true,
		"mode":                 true,
		"mode of travel":       true,
		"mode of transport":    true,
		"transport":            true,
		"transport mode":       true,
		"geography":            true,
		"world region":         true,
		"area":                 true,
		"market":               true,
		"category":             true,
		"measure":              true,
	}
)

type labelKind int

const (
	kindBlank labelKind = iota
	kindPeriodAxis
	kindYearAxis
	kindCategoryAxis
	kindPeriod
	// kindYear and kindQuarter are the halves of a split period heading
	kindYear
	kindQuarter
	kindMetric
	kindInterval
	kindUnit
	kindCategory
)

// label is one classified header or row-label cell
type label struct {
	kind     labelKind
	period   domain.Period
	year     int
	quarter  int
	metric   domain.MetricType
	category string
	unit     unit
	interval bool
}

// headerToken reports whether the label marks a header row
func (l label) headerToken() bool {
	switch l.kind {
	case kindPeriodAxis, kindYearAxis, kindCategoryAxis, kindPeriod, kindYear, kindQuarter, kindMetric, kindInterval:
		return true
	}
	return false
}

// axis reports whether the label names a row axis column
func (l label) axis() bool {
	return l.kind == kindPeriodAxis || l.kind == kindYearAxis || l.kind == kindCategoryAxis
}

type keyword struct {
	phrase string
	metric domain.MetricType
}

// vocabulary resolves source labels onto canonical metric and category names
type vocabulary struct {
	registry *schema.Registry
	lookup   map[string]string
	keywords []keyword
}

func newVocabulary(reg *schema.Registry, synonyms map[string]string) (*vocabulary, error) {
	v := &vocabulary{
		registry: reg,
		lookup:   make(map[string]string),
	}

	for _, m := range reg.Metrics() {
		v.lookup[normaliseLabel(string(m))] = string(m)
	}
	for _, d := range reg.Dimensions() {
		for _, value := range reg.KnownValues(d) {
			v.lookup[normaliseLabel(value)] = value
		}
	}
	v.lookup[normaliseLabel(domain.TotalDimensionValue)] = domain.TotalDimensionValue

	// Sorted so conflicts are reported deterministically.
	keys := make([]string, 0, len(synonyms))
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, from := range keys {
		to := strings.TrimSpace(synonyms[from])
		if !reg.IsMetric(to) && !reg.IsCategory(to) {
			return nil, fmt.Errorf("synonym %q maps to %q, which is neither a metric nor a known category", from, to)
		}
		key := normaliseLabel(from)
		if key == "" {
			return nil, fmt.Errorf("synonym %q has an empty label", from)
		}
		if prev, ok := v.lookup[key]; ok && prev != to {
			return nil, fmt.Errorf("synonym %q maps to %q but %q is already mapped to %q", from, to, key, prev)
		}
		v.lookup[key] = to
	}

	for key, target := range v.lookup {
		if reg.IsMetric(target) {
			v.keywords = append(v.keywords, keyword{phrase: key, metric: domain.MetricType(target)})
		}
	}
	sort.Slice(v.keywords, func(i, j int) bool {
		if len(v.keywords[i].phrase) != len(v.keywords[j].phrase) {
			return len(v.keywords[i].phrase) > len(v.keywords[j].phrase)
		}
		return v.keywords[i].phrase < v.keywords[j].phrase
	})
	return v, nil
}

// canonical returns the canonical name for a label, ignoring units and notes
func (v *vocabulary) canonical(s string) (string, bool) {
	target, ok := v.lookup[normaliseLabel(bracketed.ReplaceAllString(s, " "))]
	return target, ok
}

// metricsIn returns the distinct metrics named anywhere in s
func (v *vocabulary) metricsIn(s string) []domain.MetricType {
	text := " " + normaliseLabel(bracketed.ReplaceAllString(s, " ")) + " "
	var found []domain.MetricType
	seen := make(map[domain.MetricType]bool)
	for _, kw := range v.keywords {
		if strings.Contains(text, " "+kw.phrase+" ") && !seen[kw.metric] {
			seen[kw.metric] = true
			found = append(found, kw.metric)
		}
	}
	return found
}

// classify resolves one header or row-label cell
func (v *vocabulary) classify(s string) (label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return label{kind: kindBlank}, nil
	}

	u, hasUnit := detectUnit(s)
	l := label{unit: u}
	norm := normaliseLabel(bracketed.ReplaceAllString(s, " "))

	if norm == "" {
		l.kind = kindBlank
		if hasUnit {
			l.kind = kindUnit
		}
		return l, nil
	}

	switch {
	case periodAxisLabels[norm]:
		l.kind = kindPeriodAxis
		return l, nil
	case yearAxisLabels[norm]:
		l.kind = kindYearAxis
		return l, nil
	case categoryAxisLabels[norm]:
		l.kind = kindCategoryAxis
		return l, nil
	}

	if p, err := domain.ParsePeriod(s); err == nil {
		l.kind = kindPeriod
		l.period = p
		return l, nil
	}
	if y, ok := parseYear(s); ok {
		l.kind = kindYear
		l.year = y
		return l, nil
	}
	if q, err := domain.ParseQuarter(s); err == nil {
		l.kind = kindQuarter
		l.quarter = q
		return l, nil
	}

	if intervalPattern.MatchString(s) {
		rest := intervalPattern.ReplaceAllString(s, " ")
		rest = strings.TrimSpace(confidenceLevel.ReplaceAllString(rest, " "))
		inner, err := v.classify(rest)
		if err != nil {
			return label{}, err
		}
		inner.kind = kindInterval
		inner.interval = true
		inner.unit = unitPercent
		return inner, nil
	}

	if target, ok := v.canonical(s); ok {
		if v.registry.IsMetric(target) {
			l.kind = kindMetric
			l.metric = domain.MetricType(target)
		} else {
			l.kind = kindCategory
			l.category = target
		}
		return l, nil
	}

	switch metrics := v.metricsIn(s); len(metrics) {
	case 0:
	case 1:
		l.kind = kindMetric
		l.metric = metrics[0]
		return l, nil
	default:
		return label{}, fmt.Errorf("label %q names more than one metric (%s, %s)", s, metrics[0], metrics[1])
	}

	if hasUnit && isUnitOnly(norm) {
		l.kind = kindUnit
		return l, nil
	}

	l.kind = kindCategory
	l.category = cleanCategory(s)
	return l, nil
}

// normaliseLabel lowercases, spells out "&" and reduces punctuation to single spaces
func normaliseLabel(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "&", " and ")
	var b strings.Builder
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// cleanCategory trims footnote markers and spacing from an unmapped category label
func cleanCategory(s string) string {
	s = footnoteMarkers.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
