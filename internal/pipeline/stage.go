package pipeline

import (
	"encoding/json"
	"sync"
	"time"
)

// Stage names, in execution order
const (
	StageLoad      = "load"
	StageClean     = "clean"
	StageTransform = "transform"
	StageFill      = "fill"
	StageValidate  = "validate"
)

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState represents the runtime state of one stage of a run
type StageState struct {
	mu        sync.RWMutex
	Name      string
	Status    StageStatus
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
	Error     error
	// Counts holds stage-specific tallies such as sheets or records
	Counts map[string]int
}

// NewStageState creates a pending stage
func NewStageState(name string) *StageState {
	return &StageState{
		Name:   name,
		Status: StageStatusPending,
		Counts: make(map[string]int),
	}
}

func newStages() []*StageState {
	names := []string{StageLoad, StageClean, StageTransform, StageFill, StageValidate}
	stages := make([]*StageState, len(names))
	for i, name := range names {
		stages[i] = NewStageState(name)
	}
	return stages
}

// Start marks the stage as active and sets the start time
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
}

// Complete marks the stage as completed and sets the end time
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	s.Error = err
}

// Skip marks the stage as skipped with the given reason
func (s *StageState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// SetCount records a stage tally
func (s *StageState) SetCount(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Counts[key] = n
}

// GetStatus returns the current status
func (s *StageState) GetStatus() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns how long the stage ran, or has been running
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// stageJSON is the wire form of StageState
type stageJSON struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	StartTime  *time.Time     `json:"start_time,omitempty"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (s *StageState) MarshalJSON() ([]byte, error) {
	d := s.Duration()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := stageJSON{
		Name:       s.Name,
		Status:     s.Status,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		DurationMS: d.Milliseconds(),
		Message:    s.Message,
		Counts:     s.Counts,
	}
	if s.Error != nil {
		out.Error = s.Error.Error()
	}
	return json.Marshal(out)
}
