package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/storage/badger"
)

type fakeAgent struct {
	mu      sync.Mutex
	runs    int
	syncs   int
	runErr  error
	syncErr error
	active  *models.AgentRun
}

func (f *fakeAgent) Run(ctx context.Context, opts interfaces.RunOptions) (*models.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.AgentRun{
		UUID:      uuid.New().String(),
		Status:    models.RunStatusDone,
		Trigger:   opts.Trigger,
		StartedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeAgent) SyncPrices(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return f.syncErr
}

func (f *fakeAgent) ActiveRun() (*models.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeAgent) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func (f *fakeAgent) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

func newSchedulerFixture(t *testing.T) (*Service, *fakeAgent, interfaces.StorageManager) {
	t.Helper()
	store, err := badger.NewInMemoryManager(common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	agent := &fakeAgent{}
	config := common.NewDefaultConfig()
	config.Retention.Enabled = false

	svc := NewService(config, common.GetLogger(), store, agent)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, agent, store
}

func loopMessages(t *testing.T, store interfaces.StorageManager) map[string]bool {
	t.Helper()
	events, err := store.LogStorage().GetEventsByRun(loopRunUUID, 200)
	require.NoError(t, err)
	messages := map[string]bool{}
	for _, event := range events {
		messages[event.Message] = true
	}
	return messages
}

func TestStatus_IdleBeforeStart(t *testing.T) {
	svc, _, _ := newSchedulerFixture(t)

	status := svc.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Empty(t, status.CurrentAction)
	assert.Zero(t, status.NewsRuns)
	assert.Zero(t, status.PriceSyncs)
}

func TestStartStop_Lifecycle(t *testing.T) {
	svc, _, store := newSchedulerFixture(t)

	require.NoError(t, svc.Start())
	assert.Equal(t, StateRunning, svc.Status().State)

	// A second Start is a no-op
	require.NoError(t, svc.Start())
	assert.Equal(t, StateRunning, svc.Status().State)

	require.NoError(t, svc.Stop())
	assert.False(t, svc.config.Agent.RunForeverEnabled)
	assert.Eventually(t, func() bool {
		return svc.Status().State == StateIdle
	}, 5*time.Second, 50*time.Millisecond)

	messages := loopMessages(t, store)
	assert.True(t, messages["run_forever_started"])
	assert.True(t, messages["run_forever_stop_requested"])
	assert.True(t, messages["run_forever_stopped"])
}

func TestLoop_FiresFirstPassImmediately(t *testing.T) {
	svc, agent, _ := newSchedulerFixture(t)

	require.NoError(t, svc.Start())

	// Both cadences are due on the first tick after start
	assert.Eventually(t, func() bool {
		return agent.runCount() >= 1 && agent.syncCount() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	status := svc.Status()
	assert.GreaterOrEqual(t, status.NewsRuns, 1)
	assert.GreaterOrEqual(t, status.PriceSyncs, 1)
	assert.NotEmpty(t, status.LastRunUUID)
	assert.Empty(t, status.LastError)
}

func TestPauseResume(t *testing.T) {
	svc, _, store := newSchedulerFixture(t)

	assert.Error(t, svc.Pause())
	assert.Error(t, svc.Resume())

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Pause())
	assert.Equal(t, StatePaused, svc.Status().State)

	// Pausing again is idempotent
	require.NoError(t, svc.Pause())

	require.NoError(t, svc.Resume())
	assert.Equal(t, StateRunning, svc.Status().State)

	messages := loopMessages(t, store)
	assert.True(t, messages["run_forever_paused"])
	assert.True(t, messages["run_forever_resumed"])
}

func TestPause_SuppressesScheduledWork(t *testing.T) {
	svc, agent, _ := newSchedulerFixture(t)

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Pause())

	time.Sleep(2500 * time.Millisecond)
	assert.Zero(t, agent.runCount())
	assert.Zero(t, agent.syncCount())
}

func TestTriggerRun(t *testing.T) {
	svc, agent, _ := newSchedulerFixture(t)

	require.NoError(t, svc.TriggerRun())
	assert.Eventually(t, func() bool {
		return agent.runCount() == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.NotEmpty(t, svc.Status().LastRunUUID)
}

func TestTriggerRun_RejectsWhileRunActive(t *testing.T) {
	svc, agent, _ := newSchedulerFixture(t)
	agent.active = &models.AgentRun{
		UUID:      uuid.New().String(),
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	err := svc.TriggerRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
	assert.Zero(t, agent.runCount())
}

func TestActionError_RecordedWithoutKillingLoop(t *testing.T) {
	svc, agent, store := newSchedulerFixture(t)
	agent.runErr = errors.New("feed unavailable")

	require.NoError(t, svc.Start())

	assert.Eventually(t, func() bool {
		return svc.Status().LastError != ""
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "feed unavailable", svc.Status().LastError)
	assert.Equal(t, StateRunning, svc.Status().State)

	// The price sync still ran despite the news run failing
	assert.Eventually(t, func() bool {
		return agent.syncCount() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	messages := loopMessages(t, store)
	assert.True(t, messages["news_run_failed"])
}

func TestRunAction_ErrorClearedBySameActionOnly(t *testing.T) {
	svc, _, _ := newSchedulerFixture(t)

	svc.runAction("news_run", func() error { return errors.New("feed unavailable") })

	// A different action succeeding leaves the recorded failure visible
	svc.runAction("price_sync", func() error { return nil })
	assert.Equal(t, "feed unavailable", svc.Status().LastError)

	// The failing action succeeding clears it
	svc.runAction("news_run", func() error { return nil })
	assert.Empty(t, svc.Status().LastError)
}

func TestStartRetentionJob_InvalidSchedule(t *testing.T) {
	svc, _, _ := newSchedulerFixture(t)
	svc.config.Retention.Enabled = true
	svc.config.Retention.Schedule = "* * * * *"

	assert.Error(t, svc.startRetentionJob())
	assert.Nil(t, svc.cron)
}

func TestRunRetentionSweep(t *testing.T) {
	svc, _, store := newSchedulerFixture(t)
	svc.config.Retention.LogDays = 14
	svc.config.Retention.RunDays = 30
	svc.config.Retention.ItemDays = 45

	now := time.Now().UTC()

	require.NoError(t, store.LogStorage().AppendEvent(&models.AgentLogEvent{
		RunUUID:   "old-run",
		Step:      models.LogStepRunLifecycle,
		Message:   "run_started",
		CreatedAt: now.AddDate(0, 0, -20),
	}))
	require.NoError(t, store.RunStorage().SaveRun(&models.AgentRun{
		UUID:      "old-run",
		Status:    models.RunStatusDone,
		StartedAt: now.AddDate(0, 0, -40),
	}))
	require.NoError(t, store.RawItemStorage().SaveItem(&models.RawItem{
		URL:         "https://news.example.com/stale",
		SourceName:  "Wire Feed",
		Title:       "Old market note",
		PublishedAt: now.AddDate(0, 0, -60),
	}))

	// Fresh records survive the sweep
	require.NoError(t, store.RunStorage().SaveRun(&models.AgentRun{
		UUID:      "fresh-run",
		Status:    models.RunStatusDone,
		StartedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.RawItemStorage().SaveItem(&models.RawItem{
		URL:         "https://news.example.com/fresh",
		SourceName:  "Wire Feed",
		Title:       "Recent market note",
		PublishedAt: now.Add(-time.Hour),
	}))

	svc.runRetentionSweep()

	_, err := store.RunStorage().GetRun("old-run")
	require.Error(t, err)
	fresh, err := store.RunStorage().GetRun("fresh-run")
	require.NoError(t, err)
	assert.NotNil(t, fresh)

	count, err := store.RawItemStorage().CountItems()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	events, err := store.LogStorage().GetEventsByRun("old-run", 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	messages := loopMessages(t, store)
	assert.True(t, messages["retention_sweep_completed"])
}
