package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourismcli/internal/config"
	"tourismcli/internal/shared/testutil"
)

func newTestApplication(t *testing.T, mutate ...func(*config.Config)) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Version = "2024-annual"
	cfg.Source.Sheets = []config.SheetMapping{
		{Sheet: "Purpose", Dimension: "purpose"},
		{Sheet: "Transport", Dimension: "transport"},
	}
	cfg.Output.Dir = t.TempDir()
	for _, m := range mutate {
		m(cfg)
	}

	logger, _ := testutil.NewTestLogger(t)
	app, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	return app
}

func request(t *testing.T, app *Application, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	return w
}

func TestApplication_RunLifecycle(t *testing.T) {
	app := newTestApplication(t)
	path := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())

	w := request(t, app, http.MethodPost, "/api/v1/runs", map[string]any{
		"source_path": path,
		"persist":     true,
		"formats":     []string{"csv", "xlsx"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Run struct {
			RunID       string `json:"run_id"`
			Status      string `json:"status"`
			RecordCount int    `json:"record_count"`
		} `json:"run"`
		Manifest struct {
			Dir   string   `json:"dir"`
			Files []string `json:"files"`
		} `json:"manifest"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "passed_clean", created.Run.Status)
	assert.Equal(t, 20, created.Run.RecordCount)
	assert.Equal(t, filepath.Join(app.Config.Output.Dir, created.Run.RunID), created.Manifest.Dir)
	_, err := os.Stat(filepath.Join(created.Manifest.Dir, config.ObservationsCSV))
	assert.NoError(t, err)

	id := created.Run.RunID
	w = request(t, app, http.MethodGet, "/api/v1/runs/"+id+"/records?dimension_type=transport&metric_type=expenditure_gbp_mn", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Positive(t, records.Count)

	w = request(t, app, http.MethodGet, "/api/v1/runs/"+id+"/report", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, app, http.MethodGet, "/api/v1/runs", nil)
	assert.Contains(t, w.Body.String(), id)

	w = request(t, app, http.MethodDelete, "/api/v1/runs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = request(t, app, http.MethodGet, "/api/v1/runs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplication_FailedRunIsKept(t *testing.T) {
	app := newTestApplication(t)
	path := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet())

	w := request(t, app, http.MethodPost, "/api/v1/runs", map[string]any{"source_path": path})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var problem map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/pipeline/source", problem["type"])
	runID, _ := problem["run_id"].(string)
	require.NotEmpty(t, runID)

	w = request(t, app, http.MethodGet, "/api/v1/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
}

func TestApplication_Middleware(t *testing.T) {
	app := newTestApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = request(t, app, http.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestApplication_RateLimit(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, request(t, app, http.MethodGet, "/api/v1/health", nil).Code)
	w := request(t, app, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error_code"])
	assert.Equal(t, "/errors/rate-limit", body["type"])
	assert.NotEmpty(t, body["trace_id"])
}

func TestApplication_SchemaYAML(t *testing.T) {
	app := newTestApplication(t)
	w := request(t, app, http.MethodGet, "/api/v1/schema?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fields:")
}

func TestApplication_MetricsDisabled(t *testing.T) {
	app := newTestApplication(t, func(cfg *config.Config) { cfg.Telemetry.Metrics = false })
	assert.Equal(t, http.StatusNotFound, request(t, app, http.MethodGet, "/metrics", nil).Code)
}
