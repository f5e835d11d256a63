package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/pipeline"
	"tourismcli/internal/services"
	"tourismcli/internal/shared/testutil"
	"tourismcli/internal/store"
	"tourismcli/pkg/contracts/domain"
)

// MockRunService is a mock implementation of the run service
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) Submit(ctx context.Context, req services.RunRequest) (*services.RunResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RunResponse), args.Error(1)
}

func (m *MockRunService) Get(ctx context.Context, id string) (*pipeline.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func (m *MockRunService) List(ctx context.Context, filter store.RunFilter) []pipeline.Summary {
	args := m.Called(ctx, filter)
	return args.Get(0).([]pipeline.Summary)
}

func (m *MockRunService) Records(ctx context.Context, id string, filter store.RecordFilter) ([]domain.CanonicalRecord, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CanonicalRecord), args.Error(1)
}

func (m *MockRunService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupRunsHandler(t *testing.T) (*MockRunService, http.Handler) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := new(MockRunService)
	h := NewRunsHandler(svc, apperrors.NewErrorHandler(logger, false), logger)
	return svc, h.Routes()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateRun(t *testing.T) {
	svc, h := setupRunsHandler(t)
	req := services.RunRequest{SourcePath: "/data/release.xlsx", Persist: true, Formats: []string{"csv"}}
	svc.On("Submit", mock.Anything, req).Return(&services.RunResponse{
		Run: pipeline.Summary{RunID: "run-1", Status: domain.RunStatusPassedClean, RecordCount: 20},
	}, nil)

	w := do(t, h, http.MethodPost, "/", req)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	run := body["run"].(map[string]any)
	assert.Equal(t, "run-1", run["run_id"])
	assert.Equal(t, "passed_clean", run["status"])
	svc.AssertExpectations(t)
}

func TestCreateRun_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"missing source", map[string]any{"persist": true}, http.StatusBadRequest, "source_path"},
		{"not a workbook", map[string]any{"source_path": "/data/release.csv"}, http.StatusBadRequest, "source_path"},
		{"unknown format", map[string]any{"source_path": "/data/r.xlsx", "formats": []string{"orc"}}, http.StatusBadRequest, "formats[0]"},
		{"not json", "{", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := setupRunsHandler(t)

			w := do(t, h, http.MethodPost, "/", tt.body)

			assert.Equal(t, tt.status, w.Code)
			if tt.field != "" {
				assert.Contains(t, w.Body.String(), tt.field)
			}
			svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateRun_PipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"persist refused", apperrors.NotAccepted("run-9", "passed_with_warnings"), http.StatusConflict, apperrors.TypeNotAccepted},
		{"sheet missing", apperrors.SheetMissing("r.xlsx", "Purpose", []string{"Notes"}), http.StatusUnprocessableEntity, apperrors.TypeSource},
		{"unparsable value", apperrors.UnparsableValue("Purpose", "C7", "about 40"), http.StatusUnprocessableEntity, apperrors.TypeParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := setupRunsHandler(t)
			svc.On("Submit", mock.Anything, mock.Anything).Return(&services.RunResponse{
				Run: pipeline.Summary{RunID: "run-9"},
			}, tt.err)

			w := do(t, h, http.MethodPost, "/", map[string]any{"source_path": "/data/r.xlsx"})

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.typ, body["type"])
			assert.Equal(t, "run-9", body["run_id"])
		})
	}
}

func TestListRuns(t *testing.T) {
	svc, h := setupRunsHandler(t)
	svc.On("List", mock.Anything, store.RunFilter{Status: domain.RunStatusFailed, Limit: 2}).
		Return([]pipeline.Summary{{RunID: "a"}, {RunID: "b"}})

	w := do(t, h, http.MethodGet, "/?status=failed&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = do(t, h, http.MethodGet, "/?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun(t *testing.T) {
	svc, h := setupRunsHandler(t)
	started := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.On("Get", mock.Anything, "run-1").Return(&pipeline.Result{
		RunID:     "run-1",
		Status:    domain.RunStatusPassedClean,
		StartedAt: started,
		Stages:    []*pipeline.StageState{pipeline.NewStageState(pipeline.StageLoad)},
		Units:     []domain.UnitEntry{{Sheet: "Purpose", Metric: domain.MetricVisits, SourceUnit: "thousands", Factor: 1000}},
	}, nil)
	svc.On("Get", mock.Anything, "nope").Return(nil, apperrors.NewNotFoundError("run nope"))

	w := do(t, h, http.MethodGet, "/run-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Len(t, body["stages"], 1)
	assert.Len(t, body["units"], 1)
	assert.NotContains(t, body, "records")

	w = do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport(t *testing.T) {
	svc, h := setupRunsHandler(t)
	report := domain.NewValidationReport(domain.ReportMeta{RunID: "run-1"}, []domain.ValidationIssue{{
		Severity: domain.SeverityWarning, Rule: "period_gap", Message: "gap",
	}})
	svc.On("Get", mock.Anything, "run-1").Return(&pipeline.Result{RunID: "run-1", Report: report}, nil)
	svc.On("Get", mock.Anything, "failed").Return(&pipeline.Result{RunID: "failed", Status: domain.RunStatusFailed}, nil)

	w := do(t, h, http.MethodGet, "/run-1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "period_gap")

	w = do(t, h, http.MethodGet, "/failed/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "failed", decode(t, w)["run_id"])
}

func TestGetRecords(t *testing.T) {
	svc, h := setupRunsHandler(t)
	p := domain.MustPeriod(2024, 1)
	filter := store.RecordFilter{DimensionType: domain.DimensionPurpose, MetricType: domain.MetricVisits, Period: &p}
	key := domain.IdentityKey{Period: p, DimensionType: domain.DimensionPurpose, DimensionValue: "Holiday", MetricType: domain.MetricVisits}
	svc.On("Records", mock.Anything, "run-1", filter).Return([]domain.CanonicalRecord{
		domain.NewCanonicalRecord(key, domain.Float(2500), domain.Null(), "2024-annual", "Purpose"),
	}, nil)

	w := do(t, h, http.MethodGet, "/run-1/records?dimension_type=purpose&metric_type=visits&period=2024-Q1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	for _, target := range []string{
		"/run-1/records?period=2024-Q5",
		"/run-1/records?dimension_type=weather",
		"/run-1/records?metric_type=rainfall",
	} {
		w = do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	svc.AssertNumberOfCalls(t, "Records", 1)
}

func TestDeleteRun(t *testing.T) {
	svc, h := setupRunsHandler(t)
	svc.On("Delete", mock.Anything, "run-1").Return(nil)
	svc.On("Delete", mock.Anything, "run-2").Return(apperrors.NewNotFoundError("run run-2"))

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/run-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/run-2", nil).Code)
}
