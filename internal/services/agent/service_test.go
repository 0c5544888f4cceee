package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/period"
	"github.com/ternarybob/nousnews/internal/storage/badger"
)

func newPipelineFixture(t *testing.T) (*Service, interfaces.StorageManager) {
	t.Helper()
	store, err := badger.NewInMemoryManager(common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(common.NewDefaultConfig(), common.GetLogger(), store, nil, nil)
	return svc, store
}

func seedNewsSource(t *testing.T, store interfaces.StorageManager, source *models.NewsSource) {
	t.Helper()
	if source.ID == "" {
		source.ID = common.Slugify(source.Name, 60)
	}
	require.NoError(t, store.SourceStorage().SaveNewsSource(source))
}

func newsFeedServer(t *testing.T, published time.Time) *httptest.Server {
	t.Helper()
	feed := fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Fed signals interest rate cut as inflation cools</title>
    <link>https://news.example.com/fed-rate-cut</link>
    <description>The central bank said inflation is moving back toward target, opening the door to lower interest rates.</description>
    <pubDate>%s</pubDate>
  </item>
  <item>
    <title>Celebrity wedding draws crowds</title>
    <link>https://news.example.com/wedding</link>
    <description>Fans gathered outside the venue for the ceremony.</description>
    <pubDate>%s</pubDate>
  </item>
</channel></rss>`, published.Format(time.RFC1123Z), published.Format(time.RFC1123Z))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRun_FullPipeline(t *testing.T) {
	svc, store := newPipelineFixture(t)
	published := time.Now().UTC().Add(-90 * time.Minute)
	server := newsFeedServer(t, published)

	seedNewsSource(t, store, &models.NewsSource{
		Name:    "Wire Feed",
		Kind:    models.SourceKindRSS,
		URL:     server.URL,
		Enabled: true,
	})

	run, err := svc.Run(context.Background(), interfaces.RunOptions{Trigger: models.RunTriggerManual})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusDone, run.Status)
	assert.Equal(t, 1, run.SourcesFetched)
	assert.Equal(t, 1, run.ItemsIngested) // the celebrity item is rejected
	assert.False(t, run.FinishedAt.IsZero())

	// The relevant item landed in raw storage
	item, err := store.RawItemStorage().GetItem("https://news.example.com/fed-rate-cut")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Wire Feed", item.SourceName)
	assert.Greater(t, item.RelevanceScore, 0)
	assert.Contains(t, item.CleanedText, "central bank")

	// Rolling 24h draft card covers the item
	dayWin := period.RollingDay(time.Now().UTC())
	dayCard, err := store.CardStorage().GetCardByPeriod(models.TimeframeDay, dayWin.Start)
	require.NoError(t, err)
	require.NotNil(t, dayCard)
	assert.Equal(t, models.CardStatusDraft, dayCard.Status)
	assert.Equal(t, 1, dayCard.ArticleCount)
	assert.NotEmpty(t, dayCard.Title)
	assert.NotEmpty(t, dayCard.Summary)
	assert.NotEmpty(t, dayCard.Body)

	// The item's closed hour was finalized with a main article
	assert.GreaterOrEqual(t, run.CardsFinalized, 1)
	hourCard, err := store.CardStorage().GetLatestFinalCard(models.TimeframeHour)
	require.NoError(t, err)
	require.NotNil(t, hourCard)
	assert.Equal(t, period.For(models.TimeframeHour, published).Start, hourCard.PeriodStart)
	assert.Equal(t, period.CardSlug(models.TimeframeHour, hourCard.PeriodStart), hourCard.Slug)

	main, err := store.CardStorage().GetMainArticle(hourCard.UUID)
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, hourCard.UUID, main.UUID)
	assert.Equal(t, models.ArticleKindMain, main.Kind)
	assert.NotEmpty(t, main.Body)

	// Source bookkeeping advanced on success
	source, err := store.SourceStorage().GetNewsSource("wire-feed")
	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Equal(t, 0, source.FailureCount)
	assert.False(t, source.LastFetchedAt.IsZero())

	// Lifecycle events were persisted
	events, err := store.LogStorage().GetEventsByRun(run.UUID, 200)
	require.NoError(t, err)
	messages := map[string]bool{}
	for _, event := range events {
		messages[event.Message] = true
	}
	assert.True(t, messages["run_started"])
	assert.True(t, messages["source_fetch_completed"])
	assert.True(t, messages["draft_card_refreshed"])
	assert.True(t, messages["card_finalized"])
	assert.True(t, messages["run_completed"])
}

func TestRun_SecondPassSkipsUnchangedDraft(t *testing.T) {
	svc, store := newPipelineFixture(t)
	published := time.Now().UTC().Add(-30 * time.Minute)
	server := newsFeedServer(t, published)

	seedNewsSource(t, store, &models.NewsSource{
		Name:    "Wire Feed",
		Kind:    models.SourceKindRSS,
		URL:     server.URL,
		Enabled: true,
	})

	first, err := svc.Run(context.Background(), interfaces.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, models.RunStatusDone, first.Status)

	second, err := svc.Run(context.Background(), interfaces.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, models.RunStatusDone, second.Status)

	// Re-fetched items upsert by URL, so the store does not grow
	count, err := store.RawItemStorage().CountItems()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	events, err := store.LogStorage().GetEventsByRun(second.UUID, 200)
	require.NoError(t, err)
	skipped := false
	for _, event := range events {
		if event.Message == "draft_card_unchanged_skipped" {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestRun_SkipFetch(t *testing.T) {
	svc, store := newPipelineFixture(t)

	run, err := svc.Run(context.Background(), interfaces.RunOptions{SkipFetch: true})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDone, run.Status)
	assert.Equal(t, 0, run.SourcesFetched)
	assert.Equal(t, 0, run.ItemsIngested)

	count, err := store.RawItemStorage().CountItems()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRun_NoEnabledSources(t *testing.T) {
	svc, store := newPipelineFixture(t)

	run, err := svc.Run(context.Background(), interfaces.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDone, run.Status)

	events, err := store.LogStorage().GetEventsByRun(run.UUID, 100)
	require.NoError(t, err)
	found := false
	for _, event := range events {
		if event.Message == "no_enabled_news_sources" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_SourceFailureRecordsError(t *testing.T) {
	svc, store := newPipelineFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	seedNewsSource(t, store, &models.NewsSource{
		Name:             "Limited Feed",
		Kind:             models.SourceKindRSS,
		URL:              server.URL,
		Enabled:          true,
		RateLimitSeconds: 120,
	})

	run, err := svc.Run(context.Background(), interfaces.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDone, run.Status)

	source, err := store.SourceStorage().GetNewsSource("limited-feed")
	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Equal(t, 1, source.FailureCount)
	assert.Equal(t, "rate_limited", source.LastError)
	assert.True(t, source.BackoffUntil.After(time.Now().UTC().Add(90*time.Second)))
}

func TestFinalizeCardForPeriod_Idempotent(t *testing.T) {
	svc, store := newPipelineFixture(t)
	now := time.Now().UTC()
	published := now.Add(-90 * time.Minute)

	require.NoError(t, store.RawItemStorage().SaveItem(&models.RawItem{
		URL:         "https://news.example.com/fed-rate-cut",
		SourceName:  "Wire Feed",
		Title:       "Fed signals interest rate cut as inflation cools",
		Summary:     "The central bank said inflation is moving back toward target, opening the door to lower interest rates.",
		PublishedAt: published,
	}))

	rc := &runContext{
		run:    &models.AgentRun{UUID: "finalize-test"},
		budget: newLLMBudget(0),
	}

	finalized := svc.finalizeDueHourlyCards(context.Background(), rc, now)
	require.GreaterOrEqual(t, finalized, 1)

	hourStart := period.For(models.TimeframeHour, published).Start
	card, err := store.CardStorage().GetCardByPeriod(models.TimeframeHour, hourStart)
	require.NoError(t, err)
	require.NotNil(t, card)
	require.Equal(t, models.CardStatusFinal, card.Status)

	before, err := store.CardStorage().GetArticlesByCard(card.UUID)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	// A final card with a main article is left untouched on replay
	assert.False(t, svc.finalizeCardForPeriod(context.Background(), rc, models.TimeframeHour, hourStart))

	after, err := store.CardStorage().GetArticlesByCard(card.UUID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	reloaded, err := store.CardStorage().GetCard(card.UUID)
	require.NoError(t, err)
	assert.True(t, reloaded.UpdatedAt.Equal(card.UpdatedAt))
}

func TestEnsureCardAssets_PrunesDisabledSymbols(t *testing.T) {
	svc, store := newPipelineFixture(t)
	card := &models.Card{
		UUID:        "card-assets-test",
		Timeframe:   models.TimeframeHour,
		PeriodStart: time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC),
		Slug:        "hour-2024-05-06-14",
		Status:      models.CardStatusFinal,
	}
	require.NoError(t, store.CardStorage().SaveCard(card))

	gold := &models.PriceSource{
		ID:      "gold-spot",
		Name:    "Gold Spot",
		Kind:    models.SourceKindAPI,
		URL:     "https://prices.example.com/gold",
		Symbol:  "GOLD",
		Enabled: true,
	}
	btc := &models.PriceSource{
		ID:      "btc-spot",
		Name:    "BTC Spot",
		Kind:    models.SourceKindAPI,
		URL:     "https://prices.example.com/btc",
		Symbol:  "BTC",
		Enabled: true,
	}
	require.NoError(t, store.SourceStorage().SavePriceSource(gold))
	require.NoError(t, store.SourceStorage().SavePriceSource(btc))

	svc.ensureCardAssets(card)
	assets, err := store.CardStorage().GetCardAssets(card.UUID)
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	// Disabling a source removes its symbol from the card on refresh
	btc.Enabled = false
	require.NoError(t, store.SourceStorage().SavePriceSource(btc))

	svc.ensureCardAssets(card)
	assets, err = store.CardStorage().GetCardAssets(card.UUID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "GOLD", assets[0].Symbol)

	// No enabled sources at all clears the card's assets
	gold.Enabled = false
	require.NoError(t, store.SourceStorage().SavePriceSource(gold))

	svc.ensureCardAssets(card)
	assets, err = store.CardStorage().GetCardAssets(card.UUID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestActiveRun_NoneByDefault(t *testing.T) {
	svc, _ := newPipelineFixture(t)

	active, err := svc.ActiveRun()
	require.NoError(t, err)
	assert.Nil(t, active)
}
