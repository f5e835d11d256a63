package validation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tourismcli/internal/infrastructure"
	"tourismcli/internal/schema"
	"tourismcli/internal/transform"
	"tourismcli/pkg/contracts/domain"
)

// Cross-record rules
const (
	RuleDuplicateIdentity   = "duplicate_identity"
	RulePeriodGap           = "period_gap"
	RuleNewDimensionValue   = "new_dimension_value"
	RuleDiscontinuedValue   = "discontinued_dimension_value"
	RuleSupersededDuplicate = "superseded_duplicate"
	RuleUnfilledGap         = "unfilled_gap"
	RuleMixedSourceUnits    = "mixed_source_units"
	RuleUnitOverrideIgnored = "unit_override_ignored"
)

// Context carries what earlier stages noticed but did not fail on
type Context struct {
	RunID         string
	SourceVersion string
	Superseded    []transform.Supersession
	GapFlags      []transform.GapFlag
	Units         []domain.UnitEntry
	// GeneratedAt stamps the report; zero means now
	GeneratedAt time.Time
}

// Validator checks canonical records against the schema registry
type Validator struct {
	registry *schema.Registry
	logger   *slog.Logger
}

// New creates a validator
func New(registry *schema.Registry, logger *slog.Logger) *Validator {
	return &Validator{
		registry: registry,
		logger:   infrastructure.WithComponent(logger, "validator"),
	}
}

// Validate evaluates every registry constraint on every record, then the
// cross-record checks. Records are only read. Issues come out in a stable
// order: per-record issues in record order, then each cross-record rule.
func (v *Validator) Validate(records []domain.CanonicalRecord, vctx Context) *domain.ValidationReport {
	var issues []domain.ValidationIssue

	for _, rec := range records {
		key := rec.Key()
		for _, viol := range v.registry.Evaluate(rec) {
			issues = append(issues, domain.ValidationIssue{
				Severity: viol.Severity,
				Rule:     viol.Constraint,
				Field:    viol.Field,
				Key:      keyRef(key),
				Sheet:    rec.SourceSheet,
				Message:  viol.Detail,
			})
		}
	}

	issues = append(issues, checkUniqueness(records)...)
	issues = append(issues, checkContinuity(records)...)
	issues = append(issues, checkDimensionSpans(records)...)
	issues = append(issues, supersededIssues(vctx.Superseded)...)
	issues = append(issues, gapIssues(vctx.GapFlags)...)
	issues = append(issues, unitIssues(vctx.Units)...)

	generated := vctx.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	report := domain.NewValidationReport(domain.ReportMeta{
		RunID:         vctx.RunID,
		SourceVersion: vctx.SourceVersion,
		Units:         vctx.Units,
		RecordCount:   len(records),
		GeneratedAt:   generated,
	}, issues)

	v.logger.Info("validation complete",
		slog.Int("records", len(records)),
		slog.Int("errors", len(report.Errors())),
		slog.Int("warnings", len(report.Warnings())),
		slog.String("status", string(report.Status())))
	return report
}

func checkUniqueness(records []domain.CanonicalRecord) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	first := make(map[domain.IdentityKey]string, len(records))
	for _, rec := range records {
		key := rec.Key()
		sheet, seen := first[key]
		if !seen {
			first[key] = rec.SourceSheet
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Rule:     RuleDuplicateIdentity,
			Key:      keyRef(key),
			Sheet:    rec.SourceSheet,
			Message:  fmt.Sprintf("%s appears more than once (first from sheet %q)", key, sheet),
		})
	}
	return issues
}

type dimensionValue struct {
	dimension domain.DimensionType
	value     string
}

type span struct {
	first, last domain.Period
	sheet       string
	periods     map[domain.Period]bool
}

func (s *span) add(p domain.Period) {
	if s.periods == nil {
		s.periods = make(map[domain.Period]bool)
		s.first, s.last = p, p
	}
	s.periods[p] = true
	if p.Before(s.first) {
		s.first = p
	}
	if s.last.Before(p) {
		s.last = p
	}
}

// spans collects the observed periods of every dimension value, in first-seen order
func spans(records []domain.CanonicalRecord) ([]dimensionValue, map[dimensionValue]*span) {
	var order []dimensionValue
	out := make(map[dimensionValue]*span)
	for _, rec := range records {
		dv := dimensionValue{rec.DimensionType, rec.DimensionValue}
		s, ok := out[dv]
		if !ok {
			s = &span{sheet: rec.SourceSheet}
			out[dv] = s
			order = append(order, dv)
		}
		s.add(rec.Period)
	}
	return order, out
}

// checkContinuity warns about quarters with no record at all between the
// first and last observed quarter of a dimension value. An explicit null is
// a record and does not count as a gap.
func checkContinuity(records []domain.CanonicalRecord) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	order, all := spans(records)
	for _, dv := range order {
		s := all[dv]
		for p := s.first.Next(); p.Before(s.last); p = p.Next() {
			if s.periods[p] {
				continue
			}
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityWarning,
				Rule:     RulePeriodGap,
				Key:      &domain.IdentityKey{Period: p, DimensionType: dv.dimension, DimensionValue: dv.value},
				Sheet:    s.sheet,
				Message:  fmt.Sprintf("%s=%s has no record for %s", dv.dimension, dv.value, p),
			})
		}
	}
	return issues
}

// checkDimensionSpans warns about values that start after, or stop before,
// the rest of their dimension
func checkDimensionSpans(records []domain.CanonicalRecord) []domain.ValidationIssue {
	order, all := spans(records)

	bounds := make(map[domain.DimensionType]*span)
	for _, dv := range order {
		s := all[dv]
		b, ok := bounds[dv.dimension]
		if !ok {
			b = &span{}
			bounds[dv.dimension] = b
		}
		b.add(s.first)
		b.add(s.last)
	}

	var issues []domain.ValidationIssue
	for _, dv := range order {
		s, b := all[dv], bounds[dv.dimension]
		if b.first.Before(s.first) {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityWarning,
				Rule:     RuleNewDimensionValue,
				Key:      &domain.IdentityKey{Period: s.first, DimensionType: dv.dimension, DimensionValue: dv.value},
				Sheet:    s.sheet,
				Message:  fmt.Sprintf("%s=%s first appears in %s; the dimension starts in %s", dv.dimension, dv.value, s.first, b.first),
			})
		}
		if s.last.Before(b.last) {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityWarning,
				Rule:     RuleDiscontinuedValue,
				Key:      &domain.IdentityKey{Period: s.last, DimensionType: dv.dimension, DimensionValue: dv.value},
				Sheet:    s.sheet,
				Message:  fmt.Sprintf("%s=%s last appears in %s; the dimension runs to %s", dv.dimension, dv.value, s.last, b.last),
			})
		}
	}
	return issues
}

func supersededIssues(superseded []transform.Supersession) []domain.ValidationIssue {
	issues := make([]domain.ValidationIssue, 0, len(superseded))
	for _, s := range superseded {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityWarning,
			Rule:     RuleSupersededDuplicate,
			Field:    "metric_value",
			Key:      keyRef(s.Key),
			Sheet:    s.WinnerSheet,
			Message: fmt.Sprintf("%s reported by sheet %q row %d (%s) and sheet %q row %d (%s); kept %q",
				s.Key, s.LoserSheet, s.LoserRow, display(s.LoserValue), s.WinnerSheet, s.WinnerRow, display(s.WinnerValue), s.WinnerSheet),
		})
	}
	return issues
}

func gapIssues(flags []transform.GapFlag) []domain.ValidationIssue {
	issues := make([]domain.ValidationIssue, 0, len(flags))
	for _, f := range flags {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityWarning,
			Rule:     RuleUnfilledGap,
			Field:    "metric_value",
			Key:      keyRef(f.Key),
			Sheet:    f.Sheet,
			Message:  fmt.Sprintf("%s left null: %s (run of %d)", f.Key, strings.ReplaceAll(string(f.Reason), "_", " "), f.RunLength),
		})
	}
	return issues
}

// unitIssues warns when a configured unit did not fit a metric, and when one
// metric was normalised from different source
// units on different sheets
func unitIssues(units []domain.UnitEntry) []domain.ValidationIssue {
	byMetric := make(map[domain.MetricType][]domain.UnitEntry)
	for _, u := range units {
		byMetric[u.Metric] = append(byMetric[u.Metric], u)
	}
	metrics := make([]domain.MetricType, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	var issues []domain.ValidationIssue
	for _, e := range units {
		if e.OverrideIgnored == "" {
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityWarning,
			Rule:     RuleUnitOverrideIgnored,
			Field:    "metric_value",
			Message:  fmt.Sprintf("sheet %q: unit %s does not fit %s, read as %s", e.Sheet, e.OverrideIgnored, e.Metric, e.SourceUnit),
		})
	}
	for _, m := range metrics {
		entries := byMetric[m]
		distinct := make(map[string]bool)
		parts := make([]string, 0, len(entries))
		for _, e := range entries {
			distinct[e.SourceUnit] = true
			parts = append(parts, fmt.Sprintf("%s: %s", e.Sheet, e.SourceUnit))
		}
		if len(distinct) < 2 {
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityWarning,
			Rule:     RuleMixedSourceUnits,
			Field:    "metric_value",
			Message:  fmt.Sprintf("%s normalised from different source units (%s)", m, strings.Join(parts, "; ")),
		})
	}
	return issues
}

func keyRef(k domain.IdentityKey) *domain.IdentityKey {
	return &k
}

func display(v domain.NullFloat) string {
	if !v.Valid {
		return "null"
	}
	return v.String()
}
