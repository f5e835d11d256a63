package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CoverageScope is the population a record describes
type CoverageScope string

const (
	CoverageUK           CoverageScope = "UK"
	CoverageGreatBritain CoverageScope = "GreatBritain"
)

// CoverageBreak is the first quarter measured for Great Britain only.
var CoverageBreak = Period{Year: 2024, Quarter: 1}

// CoverageFor derives the coverage scope from the period alone.
func CoverageFor(p Period) CoverageScope {
	if p.Before(CoverageBreak) {
		return CoverageUK
	}
	return CoverageGreatBritain
}

// DimensionType represents the breakdown a sheet is organised by
type DimensionType string

const (
	DimensionGeography DimensionType = "geography"
	DimensionPurpose   DimensionType = "purpose"
	DimensionTransport DimensionType = "transport"
	DimensionUKRegion  DimensionType = "uk_region"
	DimensionCountry   DimensionType = "country"
)

// MetricType represents a measured quantity
type MetricType string

const (
	MetricVisits      MetricType = "visits"
	MetricExpenditure MetricType = "expenditure_gbp_mn"
	MetricNights      MetricType = "nights"
)

// TotalDimensionValue is the canonical label for totals rows and columns.
const TotalDimensionValue = "Total"

// NullFloat is a float that can be explicitly missing. Missing is never zero.
type NullFloat struct {
	Value float64
	Valid bool
}

// Float returns a present value.
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// Null returns an explicit missing value.
func Null() NullFloat {
	return NullFloat{}
}

// Equal compares presence and value.
func (n NullFloat) Equal(o NullFloat) bool {
	if n.Valid != o.Valid {
		return false
	}
	return !n.Valid || n.Value == o.Value
}

// String renders the value, or an empty string when missing.
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Ptr returns nil when missing.
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// MarshalJSON writes null for missing values.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts a number or null.
func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("null float: %w", err)
	}
	*n = Float(v)
	return nil
}

// MergeRange is a merged cell region as reported by the workbook.
type MergeRange struct {
	StartCell string `json:"start_cell"`
	EndCell   string `json:"end_cell"`
	Value     string `json:"value"`
}

// RawTable is one worksheet as read from the workbook, uninterpreted.
type RawTable struct {
	Sheet      string        `json:"sheet"`
	Dimension  DimensionType `json:"dimension"`
	SheetIndex int           `json:"sheet_index"`
	Rows       [][]string    `json:"rows"`
	Merges     []MergeRange  `json:"merges,omitempty"`
}

// Empty reports whether the table has no non-blank cell.
func (t RawTable) Empty() bool {
	for _, row := range t.Rows {
		for _, cell := range row {
			if cell != "" {
				return false
			}
		}
	}
	return true
}

// CleanRecord is one cleaned source row for one dimension value.
type CleanRecord struct {
	Sheet          string                   `json:"sheet"`
	Row            int                      `json:"row"`
	Period         Period                   `json:"period"`
	DimensionType  DimensionType            `json:"dimension_type"`
	DimensionValue string                   `json:"dimension_value"`
	Metrics        map[MetricType]NullFloat `json:"metrics"`
	Intervals      map[MetricType]NullFloat `json:"intervals,omitempty"`
}

// IdentityKey addresses one observation.
type IdentityKey struct {
	Period         Period        `json:"period"`
	DimensionType  DimensionType `json:"dimension_type"`
	DimensionValue string        `json:"dimension_value"`
	MetricType     MetricType    `json:"metric_type"`
}

// String renders the key for messages and logs.
func (k IdentityKey) String() string {
	return fmt.Sprintf("%s/%s=%s/%s", k.Period, k.DimensionType, k.DimensionValue, k.MetricType)
}

// SeriesKey groups observations into one time series.
type SeriesKey struct {
	DimensionType  DimensionType `json:"dimension_type"`
	DimensionValue string        `json:"dimension_value"`
	MetricType     MetricType    `json:"metric_type"`
}

// Series returns the series the key belongs to.
func (k IdentityKey) Series() SeriesKey {
	return SeriesKey{DimensionType: k.DimensionType, DimensionValue: k.DimensionValue, MetricType: k.MetricType}
}

// CanonicalRecord is one long-format observation. Construct it with
// NewCanonicalRecord; it is never mutated afterwards.
type CanonicalRecord struct {
	Period             Period        `json:"period"`
	Date               string        `json:"date"`
	CoverageScope      CoverageScope `json:"coverage_scope"`
	DimensionType      DimensionType `json:"dimension_type"`
	DimensionValue     string        `json:"dimension_value"`
	MetricType         MetricType    `json:"metric_type"`
	MetricValue        NullFloat     `json:"metric_value"`
	ConfidenceInterval NullFloat     `json:"confidence_interval"`
	SourceVersion      string        `json:"source_version"`
	SourceSheet        string        `json:"source_sheet"`
	Imputed            bool          `json:"imputed"`
}

// NewCanonicalRecord derives date and coverage scope from the period.
func NewCanonicalRecord(key IdentityKey, value, interval NullFloat, sourceVersion, sourceSheet string) CanonicalRecord {
	return CanonicalRecord{
		Period:             key.Period,
		Date:               key.Period.Date(),
		CoverageScope:      CoverageFor(key.Period),
		DimensionType:      key.DimensionType,
		DimensionValue:     key.DimensionValue,
		MetricType:         key.MetricType,
		MetricValue:        value,
		ConfidenceInterval: interval,
		SourceVersion:      sourceVersion,
		SourceSheet:        sourceSheet,
	}
}

// Key returns the identity tuple.
func (r CanonicalRecord) Key() IdentityKey {
	return IdentityKey{
		Period:         r.Period,
		DimensionType:  r.DimensionType,
		DimensionValue: r.DimensionValue,
		MetricType:     r.MetricType,
	}
}

// WithMetricValue returns a copy carrying a new value.
func (r CanonicalRecord) WithMetricValue(v NullFloat) CanonicalRecord {
	r.MetricValue = v
	return r
}

// AsImputed returns a copy carrying v and marked as imputed.
func (r CanonicalRecord) AsImputed(v NullFloat) CanonicalRecord {
	r.MetricValue = v
	r.Imputed = true
	return r
}

// AtPeriod returns a copy moved to p with derived fields recomputed.
func (r CanonicalRecord) AtPeriod(p Period) CanonicalRecord {
	r.Period = p
	r.Date = p.Date()
	r.CoverageScope = CoverageFor(p)
	return r
}

// Value returns a field by its dataset name. Null metric values report nil.
func (r CanonicalRecord) Value(field string) (any, bool) {
	switch field {
	case "period":
		return r.Period.String(), true
	case "date":
		return r.Date, true
	case "coverage_scope":
		return string(r.CoverageScope), true
	case "dimension_type":
		return string(r.DimensionType), true
	case "dimension_value":
		return r.DimensionValue, true
	case "metric_type":
		return string(r.MetricType), true
	case "metric_value":
		return r.MetricValue.Ptr(), true
	case "confidence_interval":
		return r.ConfidenceInterval.Ptr(), true
	case "source_version":
		return r.SourceVersion, true
	case "source_sheet":
		return r.SourceSheet, true
	case "imputed":
		return r.Imputed, true
	default:
		return nil, false
	}
}

// FormatValue renders a field for delimited output; nulls are empty.
func (r CanonicalRecord) FormatValue(field string) (string, bool) {
	v, ok := r.Value(field)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case *float64:
		if t == nil {
			return "", true
		}
		return strconv.FormatFloat(*t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}
