package interfaces

import (
	"context"

	"github.com/ternarybob/nousnews/internal/models"
)

// RunOptions controls a single aggregation run
type RunOptions struct {
	Trigger       string // "manual" or "loop"
	WithFiltering bool   // Route borderline items through the LLM filter
	SkipFetch     bool   // Aggregate existing items without fetching sources
}

// AgentService - interface for the news aggregation pipeline
type AgentService interface {
	// Run executes one full aggregation pass: fetch, ingest, refresh
	// draft cards, finalize due periods, sync prices. Returns the run
	// record; a non-nil error means the run itself could not proceed
	// (component failures are contained and logged on the run).
	Run(ctx context.Context, opts RunOptions) (*models.AgentRun, error)

	// SyncPrices fetches enabled price sources and upserts candles
	SyncPrices(ctx context.Context) error

	// ActiveRun returns the currently running record, if any
	ActiveRun() (*models.AgentRun, error)
}

// SchedulerStatus is a snapshot of the run-forever supervisor
type SchedulerStatus struct {
	State         string `json:"state"` // idle, running, paused, stopping
	CurrentAction string `json:"current_action,omitempty"`
	NewsRuns      int    `json:"news_runs"`
	PriceSyncs    int    `json:"price_syncs"`
	LastRunUUID   string `json:"last_run_uuid,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// SchedulerService - interface for the run-forever supervisor loop
type SchedulerService interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Status() SchedulerStatus
	TriggerRun() error
}
