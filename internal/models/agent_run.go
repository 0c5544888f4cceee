package models

import (
	"fmt"
	"time"
)

// AgentRun status constants
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// Run trigger constants
const (
	RunTriggerManual = "manual"
	RunTriggerLoop   = "loop"
)

const maxLastErrorChars = 2000

// AgentRun records one execution of the aggregation pipeline
type AgentRun struct {
	UUID            string    `json:"uuid"`
	Status          string    `json:"status" badgerhold:"index"`
	Trigger         string    `json:"trigger"`
	StartedAt       time.Time `json:"started_at" badgerhold:"index"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	SourcesFetched  int       `json:"sources_fetched"`
	ItemsIngested   int       `json:"items_ingested"`
	ArticlesCreated int       `json:"articles_created"`
	CardsFinalized  int       `json:"cards_finalized"`
	LLMCallsUsed    int       `json:"llm_calls_used"`
	LastError       string    `json:"last_error,omitempty"`
}

// SetLastError records the run error, clamped to the storage limit
func (r *AgentRun) SetLastError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > maxLastErrorChars {
		msg = msg[:maxLastErrorChars]
	}
	r.LastError = msg
}

// IsFinished reports whether the run has reached a terminal status
func (r *AgentRun) IsFinished() bool {
	return r.Status == RunStatusDone || r.Status == RunStatusFailed
}

// Validate validates the run record
func (r *AgentRun) Validate() error {
	if r.UUID == "" {
		return fmt.Errorf("run UUID is required")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusDone, RunStatusFailed:
	default:
		return fmt.Errorf("invalid run status: %s", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run start timestamp is required")
	}
	return nil
}

// Log event step constants
const (
	LogStepRunLifecycle   = "run_lifecycle"
	LogStepSourceFetch    = "source_fetch"
	LogStepCardGeneration = "card_generation"
	LogStepLLMPrompt      = "llm_prompt"
	LogStepLLMOutput      = "llm_output"
	LogStepNextStep       = "next_step"
	LogStepLoopState      = "loop_state"
	LogStepError          = "error"
)

// AgentLogEvent is a structured pipeline log entry persisted per run
type AgentLogEvent struct {
	ID        string                 `json:"id"`
	RunUUID   string                 `json:"run_uuid" badgerhold:"index"`
	Step      string                 `json:"step" badgerhold:"index"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at" badgerhold:"index"`
}
