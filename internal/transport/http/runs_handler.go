package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/middleware"
	"tourismcli/internal/pipeline"
	"tourismcli/internal/services"
	"tourismcli/internal/store"
	"tourismcli/internal/transform"
	"tourismcli/pkg/contracts/domain"
)

// RunsHandler handles pipeline run requests
type RunsHandler struct {
	service   RunServiceInterface
	validator *middleware.RequestValidator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(service RunServiceInterface, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}
	return &RunsHandler{
		service:   service,
		validator: middleware.NewRequestValidator(),
		errors:    errorHandler,
		logger:    logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns a chi router for run endpoints
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator("application/json"))

	r.Post("/", h.CreateRun)
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)
	r.Get("/{id}/report", h.GetReport)
	r.Get("/{id}/records", h.GetRecords)
	r.Delete("/{id}", h.DeleteRun)
	return r
}

// RunDetail is a stored run without its records
type RunDetail struct {
	pipeline.Summary
	Stages  []*pipeline.StageState       `json:"stages"`
	Units   []domain.UnitEntry           `json:"units,omitempty"`
	GapFill *transform.GapFillStatistics `json:"gap_fill,omitempty"`
}

// RecordsQuery holds the record filters accepted as query parameters
type RecordsQuery struct {
	DimensionType  string `json:"dimension_type" validate:"omitempty,oneof=geography purpose transport uk_region country"`
	DimensionValue string `json:"dimension_value"`
	MetricType     string `json:"metric_type" validate:"omitempty,oneof=visits expenditure_gbp_mn nights"`
	Period         string `json:"period" validate:"omitempty,period"`
}

// CreateRun handles POST /api/v1/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req services.RunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errors.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			err = apperrors.InvalidRequestWithError(err)
		}
		var appErr *apperrors.AppError
		if resp != nil && errors.As(err, &appErr) {
			appErr.WithContext("run_id", resp.Run.RunID)
		}
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "run created",
		slog.String("run_id", resp.Run.RunID),
		slog.String("status", string(resp.Run.Status)))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: domain.RunStatus(r.URL.Query().Get("status"))}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			h.errors.HandleError(w, r, apperrors.NewValidationErrors([]apperrors.ValidationError{
				{Field: "limit", Message: "limit must be a non-negative integer"},
			}))
			return
		}
		filter.Limit = n
	}

	runs := h.service.List(r.Context(), filter)
	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/v1/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, RunDetail{
		Summary: result.Summary(),
		Stages:  result.Stages,
		Units:   result.Units,
		GapFill: result.GapFill,
	})
}

// GetReport handles GET /api/v1/runs/{id}/report
func (h *RunsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if result.Report == nil {
		h.errors.HandleError(w, r, apperrors.NewNotFoundError("report for run "+id).WithContext("run_id", id))
		return
	}
	render.JSON(w, r, result.Report)
}

// GetRecords handles GET /api/v1/runs/{id}/records
func (h *RunsHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := RecordsQuery{
		DimensionType:  q.Get("dimension_type"),
		DimensionValue: q.Get("dimension_value"),
		MetricType:     q.Get("metric_type"),
		Period:         q.Get("period"),
	}
	if err := h.validator.ValidateStruct(&query); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	filter := store.RecordFilter{
		DimensionType:  domain.DimensionType(query.DimensionType),
		DimensionValue: query.DimensionValue,
		MetricType:     domain.MetricType(query.MetricType),
	}
	if query.Period != "" {
		p, _ := domain.ParsePeriod(query.Period)
		filter.Period = &p
	}

	records, err := h.service.Records(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// DeleteRun handles DELETE /api/v1/runs/{id}
func (h *RunsHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.NoContent(w, r)
}
