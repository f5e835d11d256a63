package services

import (
	"context"
	"runtime"
	"time"

	contracts "tourismcli/pkg/contracts"
)

// RunCounter reports how many runs are held
type RunCounter interface {
	Count() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	runs      RunCounter
	startTime time.Time
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Runtime   map[string]any `json:"runtime,omitempty"`
	Services  map[string]any `json:"services,omitempty"`
}

// NewHealthService creates a health service; runs may be nil
func NewHealthService(runs RunCounter) *HealthService {
	return &HealthService{
		version:   contracts.Version,
		runs:      runs,
		startTime: time.Now(),
	}
}

// HealthCheck reports process and service health
func (s *HealthService) HealthCheck(_ context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Runtime: map[string]any{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		},
	}
	if s.runs != nil {
		status.Services = map[string]any{
			"run_store": map[string]any{"status": "healthy", "runs": s.runs.Count()},
		}
	}
	return status
}

// Version returns build information
func (s *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}
