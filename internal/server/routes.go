package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Agent runs
	mux.HandleFunc("/api/agent/status", s.handlers.Agent.GetStatusHandler) // GET - active + last run
	mux.HandleFunc("/api/agent/run", s.handlers.Agent.TriggerRunHandler)   // POST - manual run
	mux.HandleFunc("/api/agent/runs", s.handlers.Agent.ListRunsHandler)    // GET - run history
	mux.HandleFunc("/api/agent/runs/", s.handleRunRoutes)                  // GET /{uuid}/events

	// API routes - Run-forever loop
	mux.HandleFunc("/api/agent/loop/status", s.handlers.Loop.GetStatusHandler)
	mux.HandleFunc("/api/agent/loop/start", s.handlers.Loop.StartHandler)
	mux.HandleFunc("/api/agent/loop/pause", s.handlers.Loop.PauseHandler)
	mux.HandleFunc("/api/agent/loop/resume", s.handlers.Loop.ResumeHandler)
	mux.HandleFunc("/api/agent/loop/stop", s.handlers.Loop.StopHandler)

	// API routes - Cards
	mux.HandleFunc("/api/cards", s.handlers.Cards.ListCardsHandler) // GET ?timeframe=&limit=
	mux.HandleFunc("/api/cards/", s.handlers.Cards.GetCardHandler)  // GET /{slug}, /{slug}/articles

	// API routes - Sources
	mux.HandleFunc("/api/sources/news", s.handlers.Sources.ListNewsSourcesHandler)
	mux.HandleFunc("/api/sources/prices", s.handlers.Sources.ListPriceSourcesHandler)

	// API routes - Prices
	mux.HandleFunc("/api/prices/series", s.handlers.Prices.ListSeriesHandler)
	mux.HandleFunc("/api/prices/", s.handlers.Prices.GetBucketsHandler) // GET /{symbol}/buckets

	// API routes - System
	mux.HandleFunc("/api/version", s.handlers.API.VersionHandler)
	mux.HandleFunc("/api/health", s.handlers.API.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handlers.API.NotFoundHandler)

	return mux
}

// handleRunRoutes routes /api/agent/runs/{uuid}/events
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/events") {
		s.handlers.Agent.GetRunEventsHandler(w, r)
		return
	}
	http.Error(w, "Not found", http.StatusNotFound)
}
