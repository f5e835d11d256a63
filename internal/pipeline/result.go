package pipeline

import (
	"time"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/transform"
	"tourismcli/pkg/contracts/domain"
)

// Result is the outcome of one run. A failed run carries its stages and
// error but no records and no report.
type Result struct {
	RunID         string                       `json:"run_id"`
	SourcePath    string                       `json:"source_path"`
	SourceVersion string                       `json:"source_version"`
	Status        domain.RunStatus             `json:"status"`
	Records       []domain.CanonicalRecord     `json:"records,omitempty"`
	Report        *domain.ValidationReport     `json:"report,omitempty"`
	Units         []domain.UnitEntry           `json:"units,omitempty"`
	GapFill       *transform.GapFillStatistics `json:"gap_fill,omitempty"`
	Stages        []*StageState                `json:"stages"`
	StartedAt     time.Time                    `json:"started_at"`
	FinishedAt    time.Time                    `json:"finished_at"`
	Error         string                       `json:"error,omitempty"`
}

// AcceptPolicy is the caller's decision on what may be persisted
type AcceptPolicy struct {
	// AllowNonClean accepts results that finished with error-severity issues
	AllowNonClean bool
}

// Accept reports whether the result may be written under policy. Failed
// runs are never accepted.
func (r *Result) Accept(policy AcceptPolicy) error {
	switch r.Status {
	case domain.RunStatusPassedClean:
		return nil
	case domain.RunStatusPassedWithWarnings:
		if policy.AllowNonClean {
			return nil
		}
	}
	return apperrors.NotAccepted(r.RunID, string(r.Status))
}

// Stage returns the named stage state, or nil
func (r *Result) Stage(name string) *StageState {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Duration is the wall time of the run
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is a compact, record-free view of a result
type Summary struct {
	RunID         string           `json:"run_id"`
	SourcePath    string           `json:"source_path"`
	SourceVersion string           `json:"source_version"`
	Status        domain.RunStatus `json:"status"`
	RecordCount   int              `json:"record_count"`
	Errors        int              `json:"errors"`
	Warnings      int              `json:"warnings"`
	StartedAt     time.Time        `json:"started_at"`
	DurationMS    int64            `json:"duration_ms"`
	Error         string           `json:"error,omitempty"`
}

// Summary returns the compact view of the result
func (r *Result) Summary() Summary {
	s := Summary{
		RunID:         r.RunID,
		SourcePath:    r.SourcePath,
		SourceVersion: r.SourceVersion,
		Status:        r.Status,
		RecordCount:   len(r.Records),
		StartedAt:     r.StartedAt,
		DurationMS:    r.Duration().Milliseconds(),
		Error:         r.Error,
	}
	if r.Report != nil {
		s.Errors = len(r.Report.Errors())
		s.Warnings = len(r.Report.Warnings())
	}
	return s
}
