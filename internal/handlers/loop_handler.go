package handlers

import (
	"net/http"

	"github.com/ternarybob/nousnews/internal/interfaces"
)

// LoopHandler exposes the run-forever supervisor over HTTP
type LoopHandler struct {
	scheduler interfaces.SchedulerService
}

// NewLoopHandler creates a new LoopHandler
func NewLoopHandler(scheduler interfaces.SchedulerService) *LoopHandler {
	return &LoopHandler{scheduler: scheduler}
}

// GetStatusHandler handles GET /api/agent/loop/status
func (h *LoopHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// StartHandler handles POST /api/agent/loop/start
func (h *LoopHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.scheduler.Start(); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "Loop started")
}

// PauseHandler handles POST /api/agent/loop/pause
func (h *LoopHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.scheduler.Pause(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "Loop paused")
}

// ResumeHandler handles POST /api/agent/loop/resume
func (h *LoopHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.scheduler.Resume(); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteSuccess(w, "Loop resumed")
}

// StopHandler handles POST /api/agent/loop/stop
func (h *LoopHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.scheduler.Stop(); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "Loop stop requested")
}
