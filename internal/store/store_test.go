package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/pipeline"
	"tourismcli/pkg/contracts/domain"
)

func result(id string, status domain.RunStatus, started time.Time) *pipeline.Result {
	var records []domain.CanonicalRecord
	for _, m := range []domain.MetricType{domain.MetricVisits, domain.MetricExpenditure} {
		for p, i := domain.MustPeriod(2023, 4), 0; i < 2; p, i = p.Next(), i+1 {
			key := domain.IdentityKey{Period: p, DimensionType: domain.DimensionTransport, DimensionValue: "Air", MetricType: m}
			records = append(records, domain.NewCanonicalRecord(key, domain.Float(10), domain.Null(), "v1", "Transport"))
		}
	}
	return &pipeline.Result{RunID: id, Status: status, Records: records, StartedAt: started}
}

func TestMemoryRunStore_CopyOnRead(t *testing.T) {
	s := NewMemoryRunStore()
	in := result("run-1", domain.RunStatusPassedClean, time.Now())
	require.NoError(t, s.Put(in))

	in.Records[0] = in.Records[0].WithMetricValue(domain.Float(99))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Float(10), got.Records[0].MetricValue, "store is isolated from the caller's slice")

	got.Records[1] = got.Records[1].WithMetricValue(domain.Float(-1))
	again, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Float(10), again.Records[1].MetricValue)
}

func TestMemoryRunStore_Errors(t *testing.T) {
	s := NewMemoryRunStore()
	require.NoError(t, s.Put(result("run-1", domain.RunStatusPassedClean, time.Now())))

	err := s.Put(result("run-1", domain.RunStatusPassedClean, time.Now()))
	require.Error(t, err)

	_, err = s.Get("missing")
	errType, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeNotFound, errType)

	_, err = s.Records("missing", RecordFilter{})
	assert.Error(t, err)

	require.NoError(t, s.Delete("run-1"))
	assert.Error(t, s.Delete("run-1"))
}

func TestMemoryRunStore_List(t *testing.T) {
	s := NewMemoryRunStore()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(result("a", domain.RunStatusPassedClean, base)))
	require.NoError(t, s.Put(result("b", domain.RunStatusFailed, base.Add(time.Minute))))
	require.NoError(t, s.Put(result("c", domain.RunStatusPassedClean, base.Add(2*time.Minute))))

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"c", "b", "a"}},
		{name: "by status", filter: RunFilter{Status: domain.RunStatusPassedClean}, want: []string{"c", "a"}},
		{name: "limit", filter: RunFilter{Limit: 1}, want: []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			for _, sum := range s.List(tt.filter) {
				ids = append(ids, sum.RunID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryRunStore_Records(t *testing.T) {
	s := NewMemoryRunStore()
	require.NoError(t, s.Put(result("run-1", domain.RunStatusPassedClean, time.Now())))
	q1 := domain.MustPeriod(2024, 1)

	tests := []struct {
		name   string
		filter RecordFilter
		want   int
	}{
		{name: "no filter", want: 4},
		{name: "metric", filter: RecordFilter{MetricType: domain.MetricVisits}, want: 2},
		{name: "period", filter: RecordFilter{Period: &q1}, want: 2},
		{name: "metric and period", filter: RecordFilter{MetricType: domain.MetricExpenditure, Period: &q1}, want: 1},
		{name: "other dimension", filter: RecordFilter{DimensionType: domain.DimensionPurpose}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Records("run-1", tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			assert.NotNil(t, got)
		})
	}
}

func TestMemoryRunStore_Concurrent(t *testing.T) {
	s := NewMemoryRunStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.Put(result(id, domain.RunStatusPassedClean, time.Now())); err != nil {
				t.Error(err)
			}
			if _, err := s.Get(id); err != nil {
				t.Error(err)
			}
			s.List(RunFilter{})
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.List(RunFilter{}), 20)
}
