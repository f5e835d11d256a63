package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tourismcli/internal/services"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Routes returns a chi router for health endpoints
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HealthCheck)
	r.Get("/live", h.LivenessCheck)
	return r
}

// HealthCheck handles GET /api/v1/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.HealthCheck(r.Context()))
}

// LivenessCheck handles GET /api/v1/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}

// Version handles GET /api/v1/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
