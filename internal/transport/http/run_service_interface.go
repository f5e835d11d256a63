package http

import (
	"context"

	"tourismcli/internal/pipeline"
	"tourismcli/internal/services"
	"tourismcli/internal/store"
	"tourismcli/pkg/contracts/domain"
)

// RunServiceInterface defines the run operations the handlers need
type RunServiceInterface interface {
	Submit(ctx context.Context, req services.RunRequest) (*services.RunResponse, error)
	Get(ctx context.Context, id string) (*pipeline.Result, error)
	List(ctx context.Context, filter store.RunFilter) []pipeline.Summary
	Records(ctx context.Context, id string, filter store.RecordFilter) ([]domain.CanonicalRecord, error)
	Delete(ctx context.Context, id string) error
}
