package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
)

// CardHandler serves period cards and their articles
type CardHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(store interfaces.StorageManager, logger arbor.ILogger) *CardHandler {
	return &CardHandler{store: store, logger: logger}
}

// ListCardsHandler handles GET /api/cards?timeframe=hour&limit=20
func (h *CardHandler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	tf := models.Timeframe(r.URL.Query().Get("timeframe"))
	if tf == "" {
		tf = models.TimeframeHour
	}
	if !models.IsValidTimeframe(tf) {
		WriteError(w, http.StatusBadRequest, "invalid timeframe: "+string(tf))
		return
	}

	limit := QueryLimit(r, 20, 200)
	cards, err := h.store.CardStorage().ListCards(tf, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe": tf,
		"cards":     cards,
		"count":     len(cards),
	})
}

// GetCardHandler handles GET /api/cards/{slug} and
// GET /api/cards/{slug}/articles
func (h *CardHandler) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	wantArticles := strings.HasSuffix(path, "/articles")
	slug := strings.TrimSuffix(path, "/articles")
	if slug == "" || strings.Contains(slug, "/") {
		WriteError(w, http.StatusBadRequest, "card slug is required")
		return
	}

	card, err := h.store.CardStorage().GetCardBySlug(slug)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to query card")
		return
	}
	if card == nil {
		WriteError(w, http.StatusNotFound, "card not found: "+slug)
		return
	}

	if !wantArticles {
		WriteJSON(w, http.StatusOK, card)
		return
	}

	articles, err := h.store.CardStorage().GetArticlesByCard(card.UUID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to query card articles")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"card":     card,
		"articles": articles,
		"count":    len(articles),
	})
}
