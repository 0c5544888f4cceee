package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/period"
	"github.com/ternarybob/nousnews/internal/storage/badger"
)

type stubAgent struct {
	active *models.AgentRun
}

func (s *stubAgent) Run(ctx context.Context, opts interfaces.RunOptions) (*models.AgentRun, error) {
	return nil, nil
}
func (s *stubAgent) SyncPrices(ctx context.Context) error { return nil }
func (s *stubAgent) ActiveRun() (*models.AgentRun, error) { return s.active, nil }

type stubScheduler struct {
	status    interfaces.SchedulerStatus
	triggered int
	started   int
}

func (s *stubScheduler) Start() error                       { s.started++; return nil }
func (s *stubScheduler) Pause() error                       { return nil }
func (s *stubScheduler) Resume() error                      { return nil }
func (s *stubScheduler) Stop() error                        { return nil }
func (s *stubScheduler) Status() interfaces.SchedulerStatus { return s.status }
func (s *stubScheduler) TriggerRun() error                  { s.triggered++; return nil }

func newHandlerStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	store, err := badger.NewInMemoryManager(common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedCard(t *testing.T, store interfaces.StorageManager, tf models.Timeframe, start time.Time) *models.Card {
	t.Helper()
	win := period.For(tf, start)
	card := &models.Card{
		UUID:        uuid.New().String(),
		Timeframe:   tf,
		PeriodStart: win.Start,
		PeriodEnd:   win.End,
		Slug:        period.CardSlug(tf, win.Start),
		Title:       "Rates repricing after policy shift",
		Status:      models.CardStatusFinal,
	}
	require.NoError(t, store.CardStorage().SaveCard(card))
	return card
}

func TestAgentStatusHandler(t *testing.T) {
	store := newHandlerStore(t)
	run := &models.AgentRun{
		UUID:      uuid.New().String(),
		Status:    models.RunStatusDone,
		Trigger:   models.RunTriggerManual,
		StartedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, store.RunStorage().SaveRun(run))

	h := NewAgentHandler(&stubAgent{}, &stubScheduler{}, store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.GetStatusHandler(rec, httptest.NewRequest("GET", "/api/agent/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["active_run"])
	last, ok := body["last_run"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, run.UUID, last["uuid"])
}

func TestAgentTriggerRunHandler(t *testing.T) {
	store := newHandlerStore(t)
	scheduler := &stubScheduler{}
	h := NewAgentHandler(&stubAgent{}, scheduler, store, common.GetLogger())

	rec := httptest.NewRecorder()
	h.TriggerRunHandler(rec, httptest.NewRequest("POST", "/api/agent/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, scheduler.triggered)

	// Wrong method is rejected
	rec = httptest.NewRecorder()
	h.TriggerRunHandler(rec, httptest.NewRequest("GET", "/api/agent/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunEventsHandler(t *testing.T) {
	store := newHandlerStore(t)
	runUUID := uuid.New().String()
	require.NoError(t, store.LogStorage().AppendEvent(&models.AgentLogEvent{
		RunUUID: runUUID,
		Step:    models.LogStepRunLifecycle,
		Message: "run_started",
	}))

	h := NewAgentHandler(&stubAgent{}, &stubScheduler{}, store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.GetRunEventsHandler(rec, httptest.NewRequest("GET", "/api/agent/runs/"+runUUID+"/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, runUUID, body["run_uuid"])
	assert.Equal(t, float64(1), body["count"])
}

func TestLoopStatusHandler(t *testing.T) {
	scheduler := &stubScheduler{status: interfaces.SchedulerStatus{State: "running", NewsRuns: 3}}
	h := NewLoopHandler(scheduler)

	rec := httptest.NewRecorder()
	h.GetStatusHandler(rec, httptest.NewRequest("GET", "/api/agent/loop/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, float64(3), body["news_runs"])
}

func TestListCardsHandler(t *testing.T) {
	store := newHandlerStore(t)
	seedCard(t, store, models.TimeframeHour, time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC))

	h := NewCardHandler(store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.ListCardsHandler(rec, httptest.NewRequest("GET", "/api/cards?timeframe=hour", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	// Unknown timeframe is rejected
	rec = httptest.NewRecorder()
	h.ListCardsHandler(rec, httptest.NewRequest("GET", "/api/cards?timeframe=decade", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCardHandler(t *testing.T) {
	store := newHandlerStore(t)
	card := seedCard(t, store, models.TimeframeHour, time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC))

	h := NewCardHandler(store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.GetCardHandler(rec, httptest.NewRequest("GET", "/api/cards/"+card.Slug, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, card.UUID, body["uuid"])

	rec = httptest.NewRecorder()
	h.GetCardHandler(rec, httptest.NewRequest("GET", "/api/cards/missing-slug", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCardArticlesHandler(t *testing.T) {
	store := newHandlerStore(t)
	card := seedCard(t, store, models.TimeframeHour, time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC))
	require.NoError(t, store.CardStorage().SaveArticle(&models.CardArticle{
		UUID:       card.UUID,
		CardUUID:   card.UUID,
		Kind:       models.ArticleKindMain,
		Slug:       "202405061400-rates-repricing",
		Title:      "Rates repricing after policy shift",
		Importance: 2,
	}))

	h := NewCardHandler(store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.GetCardHandler(rec, httptest.NewRequest("GET", "/api/cards/"+card.Slug+"/articles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetBucketsHandler(t *testing.T) {
	store := newHandlerStore(t)
	now := time.Now().UTC()
	_, err := store.PriceStorage().UpsertCandle("GOLD", now.Add(-2*time.Minute), 2315.80, 0)
	require.NoError(t, err)

	h := NewPricesHandler(store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.GetBucketsHandler(rec, httptest.NewRequest("GET", "/api/prices/GOLD/buckets?timeframe=hour", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "GOLD", body["symbol"])
	assert.Equal(t, float64(1), body["count"])

	rec = httptest.NewRecorder()
	h.GetBucketsHandler(rec, httptest.NewRequest("GET", "/api/prices//buckets", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNewsSourcesHandler(t *testing.T) {
	store := newHandlerStore(t)
	require.NoError(t, store.SourceStorage().SaveNewsSource(&models.NewsSource{
		ID:      "wire-feed",
		Name:    "Wire Feed",
		Kind:    models.SourceKindRSS,
		URL:     "https://news.example.com/rss",
		Enabled: true,
	}))

	h := NewSourcesHandler(store, common.GetLogger())
	rec := httptest.NewRecorder()
	h.ListNewsSourcesHandler(rec, httptest.NewRequest("GET", "/api/sources/news?enabled=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}
