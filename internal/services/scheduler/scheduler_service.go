package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
)

// Supervisor states
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StatePaused   = "paused"
	StateStopping = "stopping"
)

const tickInterval = time.Second

// loopRunUUID groups supervisor lifecycle events in the log store,
// since they belong to the loop rather than any single run.
const loopRunUUID = "loop"

// Service is the run-forever supervisor: a one-second tick loop that
// fires news runs and price syncs at their configured cadences. All
// loop state lives on the struct behind one mutex.
type Service struct {
	config *common.Config
	logger arbor.ILogger
	store  interfaces.StorageManager
	agent  interfaces.AgentService
	cron   *cron.Cron

	mu              sync.Mutex
	alive           bool
	paused          bool
	stopping        bool
	currentAction   string
	stopCh          chan struct{}
	newsRuns        int
	priceSyncs      int
	lastRunUUID     string
	lastError       string
	lastErrorAction string
	lastNewsRun     time.Time
	lastPriceSync   time.Time
}

// NewService creates the supervisor
func NewService(config *common.Config, logger arbor.ILogger, store interfaces.StorageManager, agent interfaces.AgentService) *Service {
	return &Service{
		config: config,
		logger: logger,
		store:  store,
		agent:  agent,
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)

// Start launches the supervisor loop and the retention cron job.
// Calling Start while the loop is alive is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.alive {
		s.mu.Unlock()
		s.logger.Debug().Msg("Supervisor loop already running")
		return nil
	}
	s.alive = true
	s.paused = false
	s.stopping = false
	s.stopCh = make(chan struct{})
	s.lastNewsRun = time.Time{}
	s.lastPriceSync = time.Time{}
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.startRetentionJob(); err != nil {
		s.logger.Warn().Err(err).Msg("Retention job not scheduled")
	}

	s.logLoopEvent("run_forever_started", "", map[string]interface{}{
		"news_interval_seconds":  int(s.config.NewsRunInterval().Seconds()),
		"price_interval_seconds": int(s.config.PriceSyncInterval().Seconds()),
	})

	common.SafeGo(s.logger, "supervisor_loop", func() { s.loop(stopCh) })
	return nil
}

// Pause suspends scheduled work without tearing the loop down
func (s *Service) Pause() error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return fmt.Errorf("supervisor loop is not running")
	}
	if s.paused {
		s.mu.Unlock()
		return nil
	}
	s.paused = true
	s.mu.Unlock()

	s.logLoopEvent("run_forever_paused", "", nil)
	return nil
}

// Resume reactivates a paused loop
func (s *Service) Resume() error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return fmt.Errorf("supervisor loop is not running")
	}
	if !s.paused {
		s.mu.Unlock()
		return nil
	}
	s.paused = false
	s.mu.Unlock()

	s.logLoopEvent("run_forever_resumed", "", nil)
	return nil
}

// Stop requests shutdown and disables the run-forever flag so the loop
// stays down across a restart with the same configuration.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return nil
	}
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	stopCh := s.stopCh
	s.mu.Unlock()

	s.config.Agent.RunForeverEnabled = false
	s.logLoopEvent("run_forever_stop_requested", "", nil)
	close(stopCh)
	return nil
}

// Status returns a snapshot of the loop state
func (s *Service) Status() interfaces.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateIdle
	switch {
	case s.alive && s.stopping:
		state = StateStopping
	case s.alive && s.paused:
		state = StatePaused
	case s.alive:
		state = StateRunning
	}

	return interfaces.SchedulerStatus{
		State:         state,
		CurrentAction: s.currentAction,
		NewsRuns:      s.newsRuns,
		PriceSyncs:    s.priceSyncs,
		LastRunUUID:   s.lastRunUUID,
		LastError:     s.lastError,
	}
}

// TriggerRun starts a manual news run immediately, outside the cadence
func (s *Service) TriggerRun() error {
	active, err := s.agent.ActiveRun()
	if err == nil && active != nil {
		return fmt.Errorf("aggregation run already in progress")
	}

	s.mu.Lock()
	s.lastNewsRun = time.Now()
	s.mu.Unlock()

	common.SafeGo(s.logger, "manual_run", func() { s.runNews(models.RunTriggerManual) })
	return nil
}

// loop is the supervisor body. Cadence checks use time.Since on
// monotonic timestamps, so wall clock jumps cannot fire runs early.
func (s *Service) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			s.shutdown()
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		idle := !s.paused && !s.stopping
		dueNews := idle && (s.lastNewsRun.IsZero() || time.Since(s.lastNewsRun) >= s.config.NewsRunInterval())
		duePrices := idle && (s.lastPriceSync.IsZero() || time.Since(s.lastPriceSync) >= s.config.PriceSyncInterval())
		if dueNews {
			s.lastNewsRun = time.Now()
		}
		if duePrices {
			s.lastPriceSync = time.Now()
		}
		s.mu.Unlock()

		if dueNews {
			s.runNews(models.RunTriggerLoop)
		}
		if duePrices {
			s.runPriceSync()
		}
	}
}

func (s *Service) shutdown() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Lock()
	s.alive = false
	s.paused = false
	s.stopping = false
	s.currentAction = ""
	s.mu.Unlock()
	s.logLoopEvent("run_forever_stopped", "", nil)
}

// runNews executes one aggregation run with panic containment
func (s *Service) runNews(trigger string) {
	s.runAction("news_run", func() error {
		run, err := s.agent.Run(context.Background(), interfaces.RunOptions{
			Trigger:       trigger,
			WithFiltering: true,
		})
		if run != nil {
			s.mu.Lock()
			s.lastRunUUID = run.UUID
			s.newsRuns++
			s.mu.Unlock()
		}
		return err
	})
}

// runPriceSync executes one price feed pass with panic containment
func (s *Service) runPriceSync() {
	s.runAction("price_sync", func() error {
		err := s.agent.SyncPrices(context.Background())
		if err == nil {
			s.mu.Lock()
			s.priceSyncs++
			s.mu.Unlock()
		}
		return err
	})
}

// runAction wraps one scheduled action: the action label is visible in
// Status while it runs, and panics or errors are contained so a bad
// pass never kills the loop.
func (s *Service) runAction(name string, fn func() error) {
	s.mu.Lock()
	s.currentAction = name
	s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.recordActionError(name, fmt.Errorf("panic: %v", r))
		}
		s.mu.Lock()
		s.currentAction = ""
		s.mu.Unlock()
	}()

	if err := fn(); err != nil {
		s.recordActionError(name, err)
		return
	}

	// Only the failing action clears its own error, so a succeeding
	// price sync cannot mask a news run failure from the same tick.
	s.mu.Lock()
	if s.lastErrorAction == name {
		s.lastError = ""
		s.lastErrorAction = ""
	}
	s.mu.Unlock()
}

func (s *Service) recordActionError(name string, err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastErrorAction = name
	s.mu.Unlock()

	s.logger.Warn().Err(err).Str("action", name).Msg("Supervisor action failed")
	s.logLoopEvent(name+"_failed", err.Error(), nil)
}

// startRetentionJob registers the cron-scheduled data sweep
func (s *Service) startRetentionJob() error {
	if !s.config.Retention.Enabled {
		return nil
	}
	if err := common.ValidateRetentionSchedule(s.config.Retention.Schedule); err != nil {
		return err
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Retention.Schedule, s.runRetentionSweep); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// runRetentionSweep deletes log events, finished runs, and raw items
// past their configured retention windows.
func (s *Service) runRetentionSweep() {
	now := time.Now().UTC()
	deleted := map[string]interface{}{}

	if days := s.config.Retention.LogDays; days > 0 {
		n, err := s.store.LogStorage().DeleteEventsBefore(now.AddDate(0, 0, -days))
		if err != nil {
			s.logger.Warn().Err(err).Msg("Log event retention sweep failed")
		} else {
			deleted["log_events"] = n
		}
	}
	if days := s.config.Retention.RunDays; days > 0 {
		n, err := s.store.RunStorage().DeleteRunsBefore(now.AddDate(0, 0, -days))
		if err != nil {
			s.logger.Warn().Err(err).Msg("Run record retention sweep failed")
		} else {
			deleted["runs"] = n
		}
	}
	if days := s.config.Retention.ItemDays; days > 0 {
		n, err := s.store.RawItemStorage().DeleteItemsBefore(now.AddDate(0, 0, -days))
		if err != nil {
			s.logger.Warn().Err(err).Msg("Raw item retention sweep failed")
		} else {
			deleted["raw_items"] = n
		}
	}

	s.logLoopEvent("retention_sweep_completed", "", deleted)
}

// logLoopEvent records a supervisor lifecycle event in the log store
func (s *Service) logLoopEvent(message, detail string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if detail != "" {
		payload["detail"] = detail
	}

	event := &models.AgentLogEvent{
		RunUUID:   loopRunUUID,
		Step:      models.LogStepLoopState,
		Level:     "info",
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.LogStorage().AppendEvent(event); err != nil {
		s.logger.Warn().Err(err).Str("message", message).Msg("Failed to persist loop event")
	}
}
