package transform

import (
	"log/slog"
	"sort"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

// Options configures a transformer
type Options struct {
	// SourceVersion is stamped on every record
	SourceVersion string
}

// Supersession records an observation reported more than once. The later
// loaded sheet wins.
type Supersession struct {
	Key         domain.IdentityKey `json:"key"`
	WinnerSheet string             `json:"winner_sheet"`
	WinnerRow   int                `json:"winner_row"`
	WinnerValue domain.NullFloat   `json:"winner_value"`
	LoserSheet  string             `json:"loser_sheet"`
	LoserRow    int                `json:"loser_row"`
	LoserValue  domain.NullFloat   `json:"loser_value"`
}

// Result is the canonical long-format dataset of one run
type Result struct {
	Records    []domain.CanonicalRecord
	Superseded []Supersession
}

// Transformer melts clean records into canonical observations
type Transformer struct {
	registry *schema.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a transformer
func New(registry *schema.Registry, opts Options, logger *slog.Logger) *Transformer {
	return &Transformer{
		registry: registry,
		opts:     opts,
		logger:   infrastructure.WithComponent(logger, "transformer"),
	}
}

// Transform pivots every metric of every clean record into its own
// observation, derives coverage from the period and resolves duplicates.
// tables must be in load order. Output is sorted by dimension type,
// dimension value, metric type and period.
func (t *Transformer) Transform(tables [][]domain.CleanRecord) (*Result, error) {
	var (
		records []domain.CanonicalRecord
		rows    []int
		index   = make(map[domain.IdentityKey]int)
		result  = &Result{}
	)

	for _, table := range tables {
		for _, rec := range table {
			for _, metric := range t.registry.Metrics() {
				value, ok := rec.Metrics[metric]
				if !ok {
					continue
				}
				key := domain.IdentityKey{
					Period:         rec.Period,
					DimensionType:  rec.DimensionType,
					DimensionValue: rec.DimensionValue,
					MetricType:     metric,
				}
				next := domain.NewCanonicalRecord(key, value, rec.Intervals[metric], t.opts.SourceVersion, rec.Sheet)

				i, seen := index[key]
				if !seen {
					index[key] = len(records)
					records = append(records, next)
					rows = append(rows, rec.Row)
					continue
				}

				prev := records[i]
				if prev.ConfidenceInterval.Valid && next.ConfidenceInterval.Valid &&
					prev.ConfidenceInterval.Value != next.ConfidenceInterval.Value {
					return nil, apperrors.IrreconcilableDuplicate(key.String(), "confidence_interval", prev.SourceSheet, next.SourceSheet)
				}
				if !next.ConfidenceInterval.Valid {
					next.ConfidenceInterval = prev.ConfidenceInterval
				}

				result.Superseded = append(result.Superseded, Supersession{
					Key:         key,
					WinnerSheet: next.SourceSheet,
					WinnerRow:   rec.Row,
					WinnerValue: next.MetricValue,
					LoserSheet:  prev.SourceSheet,
					LoserRow:    rows[i],
					LoserValue:  prev.MetricValue,
				})
				records[i] = next
				rows[i] = rec.Row
			}
		}
	}

	SortRecords(records)
	result.Records = records

	t.logger.Info("transform complete",
		slog.Int("tables", len(tables)),
		slog.Int("records", len(records)),
		slog.Int("superseded", len(result.Superseded)))
	return result, nil
}

// SortRecords orders records by dimension type, dimension value, metric type and period
func SortRecords(records []domain.CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return lessKey(records[i].Key(), records[j].Key())
	})
}

func lessKey(a, b domain.IdentityKey) bool {
	if a.DimensionType != b.DimensionType {
		return a.DimensionType < b.DimensionType
	}
	if a.DimensionValue != b.DimensionValue {
		return a.DimensionValue < b.DimensionValue
	}
	if a.MetricType != b.MetricType {
		return a.MetricType < b.MetricType
	}
	return a.Period.Before(b.Period)
}
