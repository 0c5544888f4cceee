package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/prices"
)

// PricesHandler serves tracked asset series and chart buckets
type PricesHandler struct {
	store  interfaces.StorageManager
	logger arbor.ILogger
}

// NewPricesHandler creates a new PricesHandler
func NewPricesHandler(store interfaces.StorageManager, logger arbor.ILogger) *PricesHandler {
	return &PricesHandler{store: store, logger: logger}
}

// ListSeriesHandler handles GET /api/prices/series
func (h *PricesHandler) ListSeriesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	series, err := h.store.PriceStorage().ListSeries(false)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list asset series")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series": series,
		"count":  len(series),
	})
}

// GetBucketsHandler handles GET /api/prices/{symbol}/buckets?timeframe=day.
// Buckets are display aggregations of the stored minute candles, sized
// per timeframe (one minute for hour cards up to one day for month cards).
func (h *PricesHandler) GetBucketsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/prices/")
	symbol := strings.TrimSuffix(path, "/buckets")
	if symbol == "" || symbol == path || strings.Contains(symbol, "/") {
		WriteError(w, http.StatusBadRequest, "asset symbol is required")
		return
	}

	tf := models.Timeframe(r.URL.Query().Get("timeframe"))
	if tf == "" {
		tf = models.TimeframeDay
	}
	if !models.IsValidTimeframe(tf) {
		WriteError(w, http.StatusBadRequest, "invalid timeframe: "+string(tf))
		return
	}

	buckets, err := prices.SeriesBuckets(h.store.PriceStorage(), symbol, tf, time.Now().UTC())
	if err != nil {
		h.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to aggregate candle buckets")
		WriteError(w, http.StatusInternalServerError, "failed to aggregate candles")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"timeframe": tf,
		"buckets":   buckets,
		"count":     len(buckets),
	})
}
