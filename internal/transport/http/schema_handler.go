package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gopkg.in/yaml.v2"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/schema"
)

// SchemaHandler serves the data dictionary of the schema registry
type SchemaHandler struct {
	registry *schema.Registry
	errors   *apperrors.ErrorHandler
	logger   *slog.Logger
}

// NewSchemaHandler creates a new schema handler
func NewSchemaHandler(registry *schema.Registry, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *SchemaHandler {
	return &SchemaHandler{
		registry: registry,
		errors:   errorHandler,
		logger:   logger.With(slog.String("handler", "schema")),
	}
}

// Routes returns a chi router for schema endpoints
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetDictionary)
	r.Get("/constraints", h.GetConstraints)
	return r
}

// GetDictionary handles GET /api/v1/schema. ?format=yaml returns YAML.
func (h *SchemaHandler) GetDictionary(w http.ResponseWriter, r *http.Request) {
	dict := h.registry.Describe()
	if r.URL.Query().Get("format") != "yaml" {
		render.JSON(w, r, dict)
		return
	}

	out, err := yaml.Marshal(dict)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// GetConstraints handles GET /api/v1/schema/constraints
func (h *SchemaHandler) GetConstraints(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"datasets":    h.registry.DatasetNames(),
		"constraints": h.registry.Constraints(),
	})
}
