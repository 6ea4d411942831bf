package handler

import (
	"log/slog"
	"net/http"

	"corai/internal/httputil"
	"corai/internal/llm"
)

// ModelsHandler serves the embedded model catalog.
type ModelsHandler struct {
	catalog *llm.Catalog
	logger  *slog.Logger
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(catalog *llm.Catalog, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{catalog: catalog, logger: logger}
}

// ListModels returns every selectable model grouped by provider
// GET /api/models
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.catalog.List())
}
