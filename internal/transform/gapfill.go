package transform

import (
	"sort"

	"tourismcli/internal/config"
	"tourismcli/pkg/contracts/domain"
)

// GapReason says why a missing value was left unfilled
type GapReason string

const (
	GapRunTooLong       GapReason = "run_too_long"
	GapCoverageBoundary GapReason = "coverage_boundary"
	GapNoAnchor         GapReason = "no_anchor"
)

// GapFlag marks one null observation the filler refused to fill
type GapFlag struct {
	Key       domain.IdentityKey `json:"key"`
	Sheet     string             `json:"sheet"`
	Reason    GapReason          `json:"reason"`
	RunLength int                `json:"run_length"`
}

// GapFillStatistics summarises one fill pass
type GapFillStatistics struct {
	SeriesProcessed int `json:"series_processed"`
	NullRecords     int `json:"null_records"`
	FilledCount     int `json:"filled_count"`
	FlaggedCount    int `json:"flagged_count"`
}

// GapFiller forward-fills short runs of missing values within one series
type GapFiller struct {
	MaxRun int
}

// NewGapFiller creates a filler; a non-positive maxRun uses the default
func NewGapFiller(maxRun int) *GapFiller {
	if maxRun <= 0 {
		maxRun = config.DefaultMaxGapRun
	}
	return &GapFiller{MaxRun: maxRun}
}

// FillSeries fills one (dimension_type, dimension_value, metric_type) series.
// A run of consecutive null quarters is filled with the value just before it
// only when the whole run is at most MaxRun long, and only for the quarters
// in that value's coverage scope. Everything else stays null and is flagged.
// The input is not modified; output is in period order.
func (g *GapFiller) FillSeries(series []domain.CanonicalRecord) ([]domain.CanonicalRecord, []GapFlag) {
	out := append([]domain.CanonicalRecord(nil), series...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })

	var flags []GapFlag
	for i := 0; i < len(out); {
		if out[i].MetricValue.Valid {
			i++
			continue
		}

		j := i + 1
		for j < len(out) && !out[j].MetricValue.Valid && out[j].Period == out[j-1].Period.Next() {
			j++
		}
		run := j - i

		var anchor *domain.CanonicalRecord
		if i > 0 && out[i-1].MetricValue.Valid && out[i-1].Period.Next() == out[i].Period {
			anchor = &out[i-1]
		}

		for k := i; k < j; k++ {
			var reason GapReason
			switch {
			case anchor == nil:
				reason = GapNoAnchor
			case run > g.MaxRun:
				reason = GapRunTooLong
			case out[k].CoverageScope != anchor.CoverageScope:
				reason = GapCoverageBoundary
			}
			if reason != "" {
				flags = append(flags, GapFlag{Key: out[k].Key(), Sheet: out[k].SourceSheet, Reason: reason, RunLength: run})
				continue
			}
			out[k] = out[k].AsImputed(anchor.MetricValue)
		}
		i = j
	}
	return out, flags
}

// FillAll groups records by series and fills each. The result keeps the
// input order.
func (g *GapFiller) FillAll(records []domain.CanonicalRecord) ([]domain.CanonicalRecord, []GapFlag, GapFillStatistics) {
	var stats GapFillStatistics

	bySeries := make(map[domain.SeriesKey][]int)
	var order []domain.SeriesKey
	for i, rec := range records {
		key := rec.Key().Series()
		if _, ok := bySeries[key]; !ok {
			order = append(order, key)
		}
		bySeries[key] = append(bySeries[key], i)
		if !rec.MetricValue.Valid {
			stats.NullRecords++
		}
	}

	out := make([]domain.CanonicalRecord, len(records))
	copy(out, records)

	var flags []GapFlag
	for _, key := range order {
		idx := bySeries[key]
		sort.SliceStable(idx, func(a, b int) bool { return records[idx[a]].Period.Before(records[idx[b]].Period) })

		series := make([]domain.CanonicalRecord, len(idx))
		for n, i := range idx {
			series[n] = records[i]
		}
		filled, f := g.FillSeries(series)
		for n, i := range idx {
			out[i] = filled[n]
			if filled[n].Imputed && !records[i].Imputed {
				stats.FilledCount++
			}
		}
		flags = append(flags, f...)
		stats.SeriesProcessed++
	}
	stats.FlaggedCount = len(flags)
	return out, flags, stats
}
