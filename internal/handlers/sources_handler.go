package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/interfaces"
)

// SourcesHandler serves news and price source configuration state
type SourcesHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewSourcesHandler creates a new SourcesHandler
func NewSourcesHandler(store interfaces.StorageManager, logger arbor.ILogger) *SourcesHandler {
	return &SourcesHandler{store: store, logger: logger}
}

// ListNewsSourcesHandler handles GET /api/sources/news
func (h *SourcesHandler) ListNewsSourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	enabledOnly := r.URL.Query().Get("enabled") == "true"
	sources, err := h.store.SourceStorage().ListNewsSources(enabledOnly)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list news sources")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// ListPriceSourcesHandler handles GET /api/sources/prices
func (h *SourcesHandler) ListPriceSourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	enabledOnly := r.URL.Query().Get("enabled") == "true"
	sources, err := h.store.SourceStorage().ListPriceSources(enabledOnly)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list price sources")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}
