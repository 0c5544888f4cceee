package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/interfaces"
)

// AgentHandler exposes aggregation run state and manual run control
type AgentHandler struct {
	agent     interfaces.AgentService
	scheduler interfaces.SchedulerService
	store     interfaces.StorageManager
	logger    arbor.ILogger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(agent interfaces.AgentService, scheduler interfaces.SchedulerService, store interfaces.StorageManager, logger arbor.ILogger) *AgentHandler {
	return &AgentHandler{
		agent:     agent,
		scheduler: scheduler,
		store:     store,
		logger:    logger,
	}
}

// GetStatusHandler handles GET /api/agent/status
func (h *AgentHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	active, err := h.agent.ActiveRun()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to query active run")
		WriteError(w, http.StatusInternalServerError, "failed to query active run")
		return
	}

	runs, err := h.store.RunStorage().ListRuns(1)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to query run history")
		return
	}

	response := map[string]interface{}{
		"active_run": active,
	}
	if len(runs) > 0 {
		response["last_run"] = runs[0]
	}
	WriteJSON(w, http.StatusOK, response)
}

// ListRunsHandler handles GET /api/agent/runs
func (h *AgentHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryLimit(r, 20, 200)
	runs, err := h.store.RunStorage().ListRuns(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunEventsHandler handles GET /api/agent/runs/{uuid}/events
func (h *AgentHandler) GetRunEventsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/agent/runs/")
	runUUID := strings.TrimSuffix(path, "/events")
	if runUUID == "" || runUUID == path {
		WriteError(w, http.StatusBadRequest, "run UUID is required")
		return
	}

	limit := QueryLimit(r, 200, 1000)
	events, err := h.store.LogStorage().GetEventsByRun(runUUID, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to query run events")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_uuid": runUUID,
		"events":   events,
		"count":    len(events),
	})
}

// TriggerRunHandler handles POST /api/agent/run
func (h *AgentHandler) TriggerRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.scheduler.TriggerRun(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteStarted(w, "Aggregation run started")
}
