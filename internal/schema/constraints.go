package schema

import (
	"fmt"
	"math"
	"strings"

	"tourismcli/pkg/contracts/domain"
)

// Constraint is a declarative predicate over one record. Check returns
// false with a short detail when the record violates it.
type Constraint struct {
	Name        string
	Severity    domain.Severity
	Description string
	Check       func(domain.CanonicalRecord) (ok bool, detail string)
}

// Violation is one failed constraint on one record
type Violation struct {
	Field      string
	Constraint string
	Severity   domain.Severity
	Detail     string
}

// Evaluate runs every field constraint of the observation dataset against
// rec, in field order. Fields the record cannot supply and non-nullable
// fields without a value (rule <field>_present) are reported as errors.
func (r *Registry) Evaluate(rec domain.CanonicalRecord) []Violation {
	var out []Violation
	for _, f := range r.datasets[DatasetName].Fields {
		v, ok := rec.Value(f.Name)
		if !ok {
			out = append(out, Violation{
				Field:      f.Name,
				Constraint: "field_declared",
				Severity:   domain.SeverityError,
				Detail:     fmt.Sprintf("record has no field %q", f.Name),
			})
			continue
		}
		if !f.Nullable && isMissing(v) {
			out = append(out, Violation{
				Field:      f.Name,
				Constraint: f.Name + "_present",
				Severity:   domain.SeverityError,
				Detail:     fmt.Sprintf("%s is required", f.Name),
			})
			continue
		}
		for _, c := range f.Constraints {
			if ok, detail := c.Check(rec); !ok {
				out = append(out, Violation{
					Field:      f.Name,
					Constraint: c.Name,
					Severity:   c.Severity,
					Detail:     detail,
				})
			}
		}
	}
	return out
}

// Constraints returns every declared constraint name in field order
func (r *Registry) Constraints() []string {
	var names []string
	for _, f := range r.datasets[DatasetName].Fields {
		for _, c := range f.Constraints {
			names = append(names, c.Name)
		}
	}
	return names
}

func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *float64:
		return t == nil
	case string:
		return isBlank(t)
	}
	return false
}

func observationsDataset(r *Registry) Dataset {
	scopes := []string{string(domain.CoverageUK), string(domain.CoverageGreatBritain)}

	return Dataset{
		Name:        DatasetName,
		Description: "Quarterly overseas visitor observations in long format, one row per period, dimension value and metric.",
		Fields: []FieldSpec{
			{
				Name:        "period",
				Type:        TypePeriod,
				Description: "Reporting quarter, YYYY-Qn.",
				Constraints: []Constraint{{
					Name:        "period_grammar",
					Severity:    domain.SeverityError,
					Description: "matches YYYY-Qn",
					Check: func(rec domain.CanonicalRecord) (bool, string) {
						label := rec.Period.String()
						if rec.Period.Valid() && domain.IsPeriodLabel(label) {
							return true, ""
						}
						return false, fmt.Sprintf("period %q is not a valid quarter", label)
					},
				}},
			},
			{
				Name:        "date",
				Type:        TypeDate,
				Description: "First day of the reporting quarter, ISO 8601.",
				Constraints: []Constraint{{
					Name:        "date_matches_period",
					Severity:    domain.SeverityError,
					Description: "equals the start of the period",
					Check: func(rec domain.CanonicalRecord) (bool, string) {
						if want := rec.Period.Date(); rec.Date != want {
							return false, fmt.Sprintf("date %q does not start period %s (want %s)", rec.Date, rec.Period, want)
						}
						return true, ""
					},
				}},
			},
			{
				Name:        "coverage_scope",
				Type:        TypeEnum,
				Description: "Population measured: UK through 2023-Q4, GreatBritain from 2024-Q1.",
				Allowed:     scopes,
				Constraints: []Constraint{
					allowedConstraint("coverage_scope_allowed", scopes, func(rec domain.CanonicalRecord) string {
						return string(rec.CoverageScope)
					}),
					{
						Name:        "coverage_scope_matches_period",
						Severity:    domain.SeverityError,
						Description: "derived from the period",
						Check: func(rec domain.CanonicalRecord) (bool, string) {
							if want := domain.CoverageFor(rec.Period); rec.CoverageScope != want {
								return false, fmt.Sprintf("coverage %s does not match period %s (want %s)", rec.CoverageScope, rec.Period, want)
							}
							return true, ""
						},
					},
				},
			},
			{
				Name:        "dimension_type",
				Type:        TypeEnum,
				Description: "Breakdown the observation belongs to.",
				Allowed:     enumValues(r.dimensions),
				Constraints: []Constraint{
					allowedConstraint("dimension_type_allowed", enumValues(r.dimensions), func(rec domain.CanonicalRecord) string {
						return string(rec.DimensionType)
					}),
				},
			},
			{
				Name:        "dimension_value",
				Type:        TypeString,
				Description: "Category within the breakdown, e.g. Holiday or London; Total for totals.",
				Constraints: []Constraint{
					{
						Name:        "dimension_value_known",
						Severity:    domain.SeverityWarning,
						Description: "is in the vocabulary of its dimension (country is open-ended)",
						Check: func(rec domain.CanonicalRecord) (bool, string) {
							if r.IsKnownValue(rec.DimensionType, rec.DimensionValue) {
								return true, ""
							}
							return false, fmt.Sprintf("%q is not a known %s value", rec.DimensionValue, rec.DimensionType)
						},
					},
					{
						Name:        "coverage_excludes_northern_ireland",
						Severity:    domain.SeverityError,
						Description: "no Northern Ireland region rows in Great Britain periods",
						Check: func(rec domain.CanonicalRecord) (bool, string) {
							if rec.DimensionType == domain.DimensionUKRegion &&
								rec.CoverageScope == domain.CoverageGreatBritain &&
								strings.Contains(strings.ToLower(rec.DimensionValue), "northern ireland") {
								return false, fmt.Sprintf("%s is outside Great Britain coverage in %s", rec.DimensionValue, rec.Period)
							}
							return true, ""
						},
					},
				},
			},
			{
				Name:        "metric_type",
				Type:        TypeEnum,
				Description: "Measured quantity.",
				Allowed:     enumValues(r.metrics),
				Constraints: []Constraint{
					allowedConstraint("metric_type_allowed", enumValues(r.metrics), func(rec domain.CanonicalRecord) string {
						return string(rec.MetricType)
					}),
				},
			},
			{
				Name:        "metric_value",
				Type:        TypeFloat,
				Nullable:    true,
				Description: "Observed value in the metric's canonical unit; null when not reported.",
				Unit:        "count (visits, nights) or GBP millions (expenditure_gbp_mn)",
				Constraints: []Constraint{
					{
						Name:        "metric_value_finite",
						Severity:    domain.SeverityError,
						Description: "is a finite number when present",
						Check: func(rec domain.CanonicalRecord) (bool, string) {
							v := rec.MetricValue
							if v.Valid && (math.IsNaN(v.Value) || math.IsInf(v.Value, 0)) {
								return false, fmt.Sprintf("metric value %v is not finite", v.Value)
							}
							return true, ""
						},
					},
					{
						Name:        "metric_value_non_negative",
						Severity:    domain.SeverityError,
						Description: ">= 0 when present",
						Check: func(rec domain.CanonicalRecord) (bool, string) {
							if v := rec.MetricValue; v.Valid && v.Value < 0 {
								return false, fmt.Sprintf("%s value %v is negative", rec.MetricType, v.Value)
							}
							return true, ""
						},
					},
				},
			},
			{
				Name:        "confidence_interval",
				Type:        TypeFloat,
				Nullable:    true,
				Description: "Confidence interval of a principal estimate, as a percentage.",
				Unit:        "percent",
				Constraints: []Constraint{{
					Name:        "confidence_interval_range",
					Severity:    domain.SeverityError,
					Description: "0 <= ci <= 100 when present",
					Check: func(rec domain.CanonicalRecord) (bool, string) {
						ci := rec.ConfidenceInterval
						if ci.Valid && !(ci.Value >= 0 && ci.Value <= 100) {
							return false, fmt.Sprintf("confidence interval %v outside [0, 100]", ci.Value)
						}
						return true, ""
					},
				}},
			},
			{
				Name:        "source_version",
				Type:        TypeString,
				Description: "Release of the ingested workbook.",
			},
			{
				Name:        "source_sheet",
				Type:        TypeString,
				Description: "Worksheet the value was read from.",
			},
			{
				Name:        "imputed",
				Type:        TypeBool,
				Description: "True only for values produced by the short-gap filler.",
			},
		},
	}
}

func allowedConstraint(name string, allowed []string, get func(domain.CanonicalRecord) string) Constraint {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return Constraint{
		Name:        name,
		Severity:    domain.SeverityError,
		Description: "one of " + strings.Join(allowed, ", "),
		Check: func(rec domain.CanonicalRecord) (bool, string) {
			if v := get(rec); !set[v] {
				return false, fmt.Sprintf("%q is not one of %s", v, strings.Join(allowed, ", "))
			}
			return true, ""
		},
	}
}
