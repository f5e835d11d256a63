package store

import (
	"sort"
	"sync"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/pipeline"
	"tourismcli/pkg/contracts/domain"
)

// RunStore keeps pipeline results by run ID
type RunStore interface {
	Put(result *pipeline.Result) error
	Get(id string) (*pipeline.Result, error)
	List(filter RunFilter) []pipeline.Summary
	Records(id string, filter RecordFilter) ([]domain.CanonicalRecord, error)
	Delete(id string) error
}

// RunFilter narrows List
type RunFilter struct {
	Status domain.RunStatus
	Limit  int
}

// RecordFilter narrows the records of one run; empty fields match everything
type RecordFilter struct {
	DimensionType  domain.DimensionType
	DimensionValue string
	MetricType     domain.MetricType
	Period         *domain.Period
}

// Match reports whether rec passes the filter
func (f RecordFilter) Match(rec domain.CanonicalRecord) bool {
	if f.DimensionType != "" && rec.DimensionType != f.DimensionType {
		return false
	}
	if f.DimensionValue != "" && rec.DimensionValue != f.DimensionValue {
		return false
	}
	if f.MetricType != "" && rec.MetricType != f.MetricType {
		return false
	}
	if f.Period != nil && rec.Period != *f.Period {
		return false
	}
	return true
}

// MemoryRunStore is an in-memory RunStore. Results are copied on the way in
// and out, so callers never share record slices with the store.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*pipeline.Result
}

// NewMemoryRunStore creates an empty store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*pipeline.Result)}
}

// Put stores a result; a run ID can only be stored once
func (s *MemoryRunStore) Put(result *pipeline.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[result.RunID]; exists {
		return apperrors.NewStorageError("run "+result.RunID+" already stored", nil)
	}
	s.runs[result.RunID] = clone(result)
	return nil
}

// Get returns a copy of the stored result
func (s *MemoryRunStore) Get(id string) (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.runs[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return clone(result), nil
}

// List returns run summaries, newest first
func (s *MemoryRunStore) List(filter RunFilter) []pipeline.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pipeline.Summary, 0, len(s.runs))
	for _, result := range s.runs {
		if filter.Status != "" && result.Status != filter.Status {
			continue
		}
		out = append(out, result.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Records returns the records of one run that match filter, in stored order
func (s *MemoryRunStore) Records(id string, filter RecordFilter) ([]domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.runs[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	out := make([]domain.CanonicalRecord, 0)
	for _, rec := range result.Records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes a run
func (s *MemoryRunStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[id]; !exists {
		return apperrors.NewNotFoundError("run " + id)
	}
	delete(s.runs, id)
	return nil
}

func clone(r *pipeline.Result) *pipeline.Result {
	c := *r
	if r.Records != nil {
		c.Records = append([]domain.CanonicalRecord(nil), r.Records...)
	}
	if r.Units != nil {
		c.Units = append([]domain.UnitEntry(nil), r.Units...)
	}
	c.Stages = append([]*pipeline.StageState(nil), r.Stages...)
	return &c
}
