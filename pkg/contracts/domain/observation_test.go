package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullFloatJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A NullFloat `json:"a"`
		B NullFloat `json:"b"`
	}{A: Float(1.5), B: Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(out))

	var in struct {
		A NullFloat `json:"a"`
		B NullFloat `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":0,"b":null}`), &in))
	assert.True(t, in.A.Valid, "zero is a value, not missing")
	assert.False(t, in.B.Valid)
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Float(0).Equal(Null()))
}

func TestNewCanonicalRecordDerivesScope(t *testing.T) {
	key := IdentityKey{
		Period:         MustPeriod(2023, 4),
		DimensionType:  DimensionPurpose,
		DimensionValue: "Holiday",
		MetricType:     MetricVisits,
	}
	before := NewCanonicalRecord(key, Float(100), Null(), "2024-release", "Purpose")
	key.Period = MustPeriod(2024, 1)
	after := NewCanonicalRecord(key, Float(100), Null(), "2024-release", "Purpose")

	assert.Equal(t, CoverageUK, before.CoverageScope)
	assert.Equal(t, CoverageGreatBritain, after.CoverageScope)
	assert.Equal(t, "2023-10-01", before.Date)
	assert.Equal(t, "2024-01-01", after.Date)
	assert.Equal(t, before.DimensionValue, after.DimensionValue)
	assert.False(t, before.Imputed)
}

func TestCanonicalRecordCopies(t *testing.T) {
	rec := NewCanonicalRecord(IdentityKey{
		Period:         MustPeriod(2023, 4),
		DimensionType:  DimensionGeography,
		DimensionValue: "Europe",
		MetricType:     MetricNights,
	}, Null(), Null(), "v1", "Geography")

	filled := rec.AsImputed(Float(12))
	moved := rec.AtPeriod(MustPeriod(2024, 1))

	assert.False(t, rec.MetricValue.Valid, "original unchanged")
	assert.True(t, filled.Imputed)
	assert.Equal(t, 12.0, filled.MetricValue.Value)
	assert.Equal(t, CoverageGreatBritain, moved.CoverageScope)
	assert.Equal(t, "2024-01-01", moved.Date)
}

func TestCanonicalRecordValue(t *testing.T) {
	rec := NewCanonicalRecord(IdentityKey{
		Period:         MustPeriod(2024, 2),
		DimensionType:  DimensionTransport,
		DimensionValue: "Air",
		MetricType:     MetricExpenditure,
	}, Float(1234.5), Null(), "v1", "Transport")

	v, ok := rec.Value("period")
	require.True(t, ok)
	assert.Equal(t, "2024-Q2", v)

	v, ok = rec.Value("confidence_interval")
	require.True(t, ok)
	assert.Nil(t, v.(*float64))

	s, ok := rec.FormatValue("metric_value")
	require.True(t, ok)
	assert.Equal(t, "1234.5", s)

	s, ok = rec.FormatValue("confidence_interval")
	require.True(t, ok)
	assert.Equal(t, "", s)

	_, ok = rec.Value("region_code")
	assert.False(t, ok)
}

func TestValidationReport(t *testing.T) {
	key := IdentityKey{Period: MustPeriod(2024, 1), DimensionType: DimensionPurpose, DimensionValue: "Holiday", MetricType: MetricVisits}
	issues := []ValidationIssue{
		{Severity: SeverityWarning, Rule: "period_gap", Message: "gap"},
		{Severity: SeverityError, Rule: "metric_value_non_negative", Key: &key, Message: "negative"},
		{Severity: SeverityWarning, Rule: "period_gap", Message: "gap"},
	}
	report := NewValidationReport(ReportMeta{RunID: "run-1", GeneratedAt: time.Unix(0, 0).UTC()}, issues)
	issues[0].Rule = "mutated"

	assert.Equal(t, "period_gap", report.Issues()[0].Rule, "report keeps its own copy")
	assert.True(t, report.HasErrors())
	assert.Len(t, report.Errors(), 1)
	assert.Len(t, report.Warnings(), 2)
	assert.Equal(t, map[string]int{"period_gap": 2, "metric_value_non_negative": 1}, report.CountByRule())
	assert.Equal(t, RunStatusPassedWithWarnings, report.Status())

	returned := report.Issues()
	returned[1].Severity = SeverityWarning
	assert.True(t, report.HasErrors(), "returned slice is a copy")

	out, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded ValidationReport
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, report.Issues(), decoded.Issues())
	assert.Equal(t, "run-1", decoded.Meta().RunID)

	clean := NewValidationReport(ReportMeta{}, nil)
	assert.Equal(t, RunStatusPassedClean, clean.Status())
	out, err = json.Marshal(clean)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"issues":[]`)
}
