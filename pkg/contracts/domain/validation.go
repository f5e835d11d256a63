package domain

import (
	"encoding/json"
	"time"
)

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// RunStatus is the outcome of one pipeline run
type RunStatus string

const (
	RunStatusFailed             RunStatus = "failed"
	RunStatusPassedWithWarnings RunStatus = "passed_with_warnings"
	RunStatusPassedClean        RunStatus = "passed_clean"
)

// ValidationIssue is one failed rule.
type ValidationIssue struct {
	Severity Severity     `json:"severity"`
	Rule     string       `json:"rule"`
	Field    string       `json:"field,omitempty"`
	Key      *IdentityKey `json:"key,omitempty"`
	Sheet    string       `json:"sheet,omitempty"`
	Message  string       `json:"message"`
}

// UnitEntry records the source unit a metric was normalised from on one sheet.
type UnitEntry struct {
	Sheet      string     `json:"sheet"`
	Metric     MetricType `json:"metric"`
	SourceUnit string     `json:"source_unit"`
	Factor     float64    `json:"factor"`
	// OverrideIgnored names a configured unit that did not fit the metric.
	OverrideIgnored string `json:"override_ignored,omitempty"`
}

// ReportMeta is run metadata carried alongside the issues.
type ReportMeta struct {
	RunID         string      `json:"run_id"`
	SourceVersion string      `json:"source_version"`
	Units         []UnitEntry `json:"units,omitempty"`
	RecordCount   int         `json:"record_count"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

// ValidationReport is the ordered, immutable result of validation.
type ValidationReport struct {
	meta   ReportMeta
	issues []ValidationIssue
}

// NewValidationReport copies issues so later changes by the caller are not visible.
func NewValidationReport(meta ReportMeta, issues []ValidationIssue) *ValidationReport {
	own := make([]ValidationIssue, len(issues))
	copy(own, issues)
	meta.Units = append([]UnitEntry(nil), meta.Units...)
	return &ValidationReport{meta: meta, issues: own}
}

// Meta returns the run metadata.
func (r *ValidationReport) Meta() ReportMeta {
	m := r.meta
	m.Units = append([]UnitEntry(nil), r.meta.Units...)
	return m
}

// Issues returns a copy of the issues in order.
func (r *ValidationReport) Issues() []ValidationIssue {
	out := make([]ValidationIssue, len(r.issues))
	copy(out, r.issues)
	return out
}

// Len returns the number of issues.
func (r *ValidationReport) Len() int {
	return len(r.issues)
}

// HasErrors reports whether any error-severity issue exists.
func (r *ValidationReport) HasErrors() bool {
	for _, issue := range r.issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity issues.
func (r *ValidationReport) Errors() []ValidationIssue {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning-severity issues.
func (r *ValidationReport) Warnings() []ValidationIssue {
	return r.bySeverity(SeverityWarning)
}

func (r *ValidationReport) bySeverity(s Severity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// CountByRule tallies issues per rule name.
func (r *ValidationReport) CountByRule() map[string]int {
	counts := make(map[string]int)
	for _, issue := range r.issues {
		counts[issue.Rule]++
	}
	return counts
}

// Status maps the report onto a run status.
func (r *ValidationReport) Status() RunStatus {
	if r.HasErrors() {
		return RunStatusPassedWithWarnings
	}
	return RunStatusPassedClean
}

type reportJSON struct {
	ReportMeta
	Status  RunStatus         `json:"status"`
	Summary reportSummary     `json:"summary"`
	Issues  []ValidationIssue `json:"issues"`
}

type reportSummary struct {
	Errors   int            `json:"errors"`
	Warnings int            `json:"warnings"`
	ByRule   map[string]int `json:"by_rule"`
}

// MarshalJSON writes the report as a structured document.
func (r *ValidationReport) MarshalJSON() ([]byte, error) {
	issues := r.issues
	if issues == nil {
		issues = []ValidationIssue{}
	}
	return json.Marshal(reportJSON{
		ReportMeta: r.meta,
		Status:     r.Status(),
		Summary: reportSummary{
			Errors:   len(r.Errors()),
			Warnings: len(r.Warnings()),
			ByRule:   r.CountByRule(),
		},
		Issues: issues,
	})
}

// UnmarshalJSON restores a report written by MarshalJSON.
func (r *ValidationReport) UnmarshalJSON(b []byte) error {
	var doc reportJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*r = *NewValidationReport(doc.ReportMeta, doc.Issues)
	return nil
}
