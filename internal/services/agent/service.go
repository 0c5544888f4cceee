package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nousnews/internal/common"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/period"
	"github.com/ternarybob/nousnews/internal/services/relevance"
	"github.com/ternarybob/nousnews/internal/services/sources"
)

// PriceSyncer runs one price feed pass; the agent treats sync failures
// as degraded diagnostics, never a run failure.
type PriceSyncer interface {
	Sync(ctx context.Context) error
}

// Service runs the news aggregation pipeline
type Service struct {
	config  *common.Config
	logger  arbor.ILogger
	store   interfaces.StorageManager
	llm     interfaces.LLMService
	fetcher *sources.Client
	prices  PriceSyncer

	runMu     sync.Mutex
	runActive bool
}

// runContext carries per-run state through the pipeline
type runContext struct {
	run           *models.AgentRun
	budget        *llmBudget
	minPublished  time.Time
	withFiltering bool
}

// sourceFetchResult is one worker's outcome for a source
type sourceFetchResult struct {
	source   *models.NewsSource
	items    []sources.NormalizedItem
	duration time.Duration
	err      error
}

// fetchStats tallies the ingest phase
type fetchStats struct {
	sourcesProcessed int
	itemsSeen        int
	itemsSaved       int
	itemsRejected    int
}

// NewService creates the aggregation service
func NewService(config *common.Config, logger arbor.ILogger, store interfaces.StorageManager, llm interfaces.LLMService, prices PriceSyncer) *Service {
	return &Service{
		config:  config,
		logger:  logger,
		store:   store,
		llm:     llm,
		fetcher: sources.NewClient(logger, sources.WithMaxItems(config.Agent.MaxItemsPerSource)),
		prices:  prices,
	}
}

var _ interfaces.AgentService = (*Service)(nil)

// ActiveRun returns the currently running record, if any
func (s *Service) ActiveRun() (*models.AgentRun, error) {
	return s.store.RunStorage().GetActiveRun()
}

// Run executes one full aggregation pass. Only one run may be active
// at a time; a second concurrent call returns an error without work.
func (s *Service) Run(ctx context.Context, opts interfaces.RunOptions) (*models.AgentRun, error) {
	s.runMu.Lock()
	if s.runActive {
		s.runMu.Unlock()
		return nil, fmt.Errorf("aggregation run already in progress")
	}
	s.runActive = true
	s.runMu.Unlock()
	defer func() {
		s.runMu.Lock()
		s.runActive = false
		s.runMu.Unlock()
	}()

	startedAt := time.Now().UTC()
	trigger := opts.Trigger
	if trigger == "" {
		trigger = models.RunTriggerManual
	}

	run := &models.AgentRun{
		UUID:      uuid.New().String(),
		Status:    models.RunStatusRunning,
		Trigger:   trigger,
		StartedAt: startedAt,
	}
	if err := s.store.RunStorage().SaveRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	rc := &runContext{
		run:           run,
		budget:        newLLMBudget(s.config.Agent.LLMBudgetPerRun),
		minPublished:  startedAt.Add(-time.Duration(s.config.Agent.IngestLookbackHours) * time.Hour),
		withFiltering: opts.WithFiltering && s.config.Agent.LLMFilterEnabled,
	}

	s.logEvent(run.UUID, models.LogStepRunLifecycle, levelInfo, "run_started", "", map[string]interface{}{
		"trigger":               trigger,
		"llm_enabled":           s.llm != nil && s.llm.Enabled(),
		"with_filtering":        rc.withFiltering,
		"skip_fetch":            opts.SkipFetch,
		"loop_interval_minutes": s.config.Agent.LoopIntervalMinutes,
		"price_loop_seconds":    s.config.Agent.PriceLoopSeconds,
		"ingest_lookback_hours": s.config.Agent.IngestLookbackHours,
		"min_published_at":      rc.minPublished,
		"llm_budget":            rc.budget.limit,
		"llm_reserved":          s.config.Agent.LLMReservedForArticles,
		"economist_enabled":     s.config.Economist.Enabled,
	})

	runErr := s.executePipeline(ctx, rc, opts)

	run.FinishedAt = time.Now().UTC()
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.SetLastError(runErr)
		s.logEvent(run.UUID, models.LogStepError, levelErr, "run_failed", runErr.Error(), nil)
	} else {
		run.Status = models.RunStatusDone
	}
	run.LLMCallsUsed = rc.budget.used
	if err := s.store.RunStorage().SaveRun(run); err != nil {
		s.logger.Warn().Err(err).Str("run", run.UUID).Msg("Failed to persist run record")
	}
	return run, runErr
}

func (s *Service) executePipeline(ctx context.Context, rc *runContext, opts interfaces.RunOptions) error {
	run := rc.run

	var stats fetchStats
	if !opts.SkipFetch {
		var err error
		stats, err = s.fetchAndIngest(ctx, rc)
		if err != nil {
			return err
		}
	}
	run.SourcesFetched = stats.sourcesProcessed
	run.ItemsIngested = stats.itemsSaved

	now := time.Now().UTC()
	if err := s.refreshDraftCard(ctx, rc, models.TimeframeDay, period.RollingDay(now), now); err != nil {
		return fmt.Errorf("failed to refresh rolling day card: %w", err)
	}
	if err := s.refreshDraftCard(ctx, rc, models.TimeframeHour, period.For(models.TimeframeHour, now), now); err != nil {
		return fmt.Errorf("failed to refresh current hour card: %w", err)
	}

	staleFinalized := s.finalizeStaleDraftCards(rc, now)
	hourlyFinalized := s.finalizeDueHourlyCards(ctx, rc, now)
	aggregateFinalized := s.finalizeDueAggregateCards(ctx, rc, now)
	run.CardsFinalized = staleFinalized + hourlyFinalized + aggregateFinalized
	run.ArticlesCreated = run.CardsFinalized

	s.syncPriceFeeds(ctx, rc)

	s.logEvent(run.UUID, models.LogStepRunLifecycle, levelInfo, "run_completed", "", map[string]interface{}{
		"duration_ms":         time.Since(run.StartedAt).Milliseconds(),
		"sources_processed":   stats.sourcesProcessed,
		"raw_items_seen":      stats.itemsSeen,
		"raw_items_saved":     stats.itemsSaved,
		"raw_items_rejected":  stats.itemsRejected,
		"cards_finalized":     run.CardsFinalized,
		"stale_finalized":     staleFinalized,
		"hourly_finalized":    hourlyFinalized,
		"aggregate_finalized": aggregateFinalized,
		"llm_requests_used":   rc.budget.used,
		"llm_request_budget":  rc.budget.limit,
	})
	return nil
}

// SyncPrices runs one price feed pass outside an aggregation run
func (s *Service) SyncPrices(ctx context.Context) error {
	if s.prices == nil {
		return nil
	}
	return s.prices.Sync(ctx)
}

func (s *Service) syncPriceFeeds(ctx context.Context, rc *runContext) {
	if s.prices == nil {
		return
	}
	if err := s.prices.Sync(ctx); err != nil {
		s.logEvent(rc.run.UUID, models.LogStepError, levelWarn, "price_feed_sync_failed", err.Error(), nil)
		return
	}
	s.logEvent(rc.run.UUID, models.LogStepNextStep, levelInfo, "price_feed_sync_completed", "", nil)
}

// fetchAndIngest fetches all enabled sources concurrently and ingests
// the relevance-gated results.
func (s *Service) fetchAndIngest(ctx context.Context, rc *runContext) (fetchStats, error) {
	enabled, err := s.store.SourceStorage().ListNewsSources(true)
	if err != nil {
		return fetchStats{}, fmt.Errorf("failed to list news sources: %w", err)
	}
	if len(enabled) == 0 {
		s.logEvent(rc.run.UUID, models.LogStepSourceFetch, levelWarn, "no_enabled_news_sources",
			"Enable at least one news source in the configuration.", nil)
		return fetchStats{}, nil
	}

	stats := fetchStats{sourcesProcessed: len(enabled)}
	now := time.Now().UTC()

	var active []*models.NewsSource
	for _, source := range enabled {
		if source.InBackoff(now) {
			s.logEvent(rc.run.UUID, models.LogStepSourceFetch, levelInfo, "source_skipped_backoff", "", map[string]interface{}{
				"source":        source.Name,
				"backoff_until": source.BackoffUntil,
			})
			continue
		}
		s.logEvent(rc.run.UUID, models.LogStepSourceFetch, levelInfo, "source_fetch_started", "", map[string]interface{}{
			"source":      source.Name,
			"source_kind": source.Kind,
			"source_url":  source.URL,
		})
		active = append(active, source)
	}
	if len(active) == 0 {
		return stats, nil
	}

	workers := s.config.Agent.FetchWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(active) {
		workers = len(active)
	}

	jobs := make(chan *models.NewsSource)
	results := make(chan sourceFetchResult, len(active))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				started := time.Now()
				items, err := s.fetcher.Fetch(ctx, source)
				results <- sourceFetchResult{
					source:   source,
					items:    items,
					duration: time.Since(started),
					err:      err,
				}
			}
		}()
	}
	go func() {
		for _, source := range active {
			jobs <- source
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for result := range results {
		s.ingestSourceResult(ctx, rc, result, &stats)
	}
	return stats, nil
}

// ingestSourceResult stores one source's batch: cleaning, lookback and
// relevance gating, optional LLM filter, dedupe, and bookkeeping on
// the source record.
func (s *Service) ingestSourceResult(ctx context.Context, rc *runContext, result sourceFetchResult, stats *fetchStats) {
	source := result.source
	now := time.Now().UTC()

	if result.err != nil {
		if result.err == sources.ErrRateLimited {
			s.applyBackoff(source, result.err.Error(), now)
		} else {
			s.recordSourceError(source, result.err.Error(), now)
		}
		s.logEvent(rc.run.UUID, models.LogStepSourceFetch, levelWarn, "source_fetch_failed", result.err.Error(), map[string]interface{}{
			"source":      source.Name,
			"source_url":  source.URL,
			"duration_ms": result.duration.Milliseconds(),
		})
		return
	}

	seenKeys := map[string]bool{}
	var sourceLatest time.Time
	seen, saved, rejected, rejectedOld, rejectedLLM := 0, 0, 0, 0, 0

	for _, item := range result.items {
		seen++
		stats.itemsSeen++

		cleaned := CleanText(item.BestText())
		if cleaned == "" {
			rejected++
			stats.itemsRejected++
			continue
		}

		if item.PublishedAt.IsZero() {
			rejected++
			stats.itemsRejected++
			continue
		}
		if item.PublishedAt.Before(rc.minPublished) {
			rejected++
			rejectedOld++
			stats.itemsRejected++
			continue
		}

		score := relevance.Score(cleaned, item.Title)
		importance := 0
		var decision *models.FilterDecision
		if s.shouldApplyLLMFilter(rc, score) {
			decision = s.filterItem(ctx, rc, item.Title, item.Summary, cleaned, score, source.Name)
		}
		if decision != nil {
			if !decision.Accept {
				rejected++
				rejectedLLM++
				stats.itemsRejected++
				continue
			}
			importance = decision.Importance
		}
		if score < s.config.Agent.MinRelevanceScore && (decision == nil || !decision.Accept) {
			rejected++
			stats.itemsRejected++
			continue
		}

		key := sources.DedupeKey(item)
		if seenKeys[key] {
			rejected++
			stats.itemsRejected++
			continue
		}
		seenKeys[key] = true

		if err := s.storeRawItem(source, item, cleaned, score, importance, now); err != nil {
			s.logger.Warn().Err(err).Str("source", source.Name).Msg("Failed to store raw item")
			rejected++
			stats.itemsRejected++
			continue
		}
		saved++
		stats.itemsSaved++

		if item.PublishedAt.After(sourceLatest) {
			sourceLatest = item.PublishedAt
		}
	}

	if sourceLatest.IsZero() {
		sourceLatest = now
	}
	source.LastFetchedAt = sourceLatest
	source.FailureCount = 0
	source.LastError = ""
	source.BackoffUntil = time.Time{}
	source.UpdatedAt = now
	if err := s.store.SourceStorage().SaveNewsSource(source); err != nil {
		s.logger.Warn().Err(err).Str("source", source.Name).Msg("Failed to update source record")
	}

	s.logEvent(rc.run.UUID, models.LogStepSourceFetch, levelInfo, "source_fetch_completed", "", map[string]interface{}{
		"source":             source.Name,
		"items_seen":         seen,
		"items_saved":        saved,
		"items_rejected":     rejected,
		"items_rejected_old": rejectedOld,
		"items_rejected_llm": rejectedLLM,
		"min_published_at":   rc.minPublished,
		"duration_ms":        result.duration.Milliseconds(),
	})
}

func (s *Service) storeRawItem(source *models.NewsSource, item sources.NormalizedItem, cleaned string, score, importance int, now time.Time) error {
	url := item.URL
	if url == "" {
		url = sources.SyntheticURL(source, item.Title, item.PublishedAt)
	}

	record := &models.RawItem{
		URL:            url,
		SourceName:     source.Name,
		SourceURL:      source.URL,
		Title:          item.Title,
		Summary:        item.Summary,
		Content:        item.Content,
		CleanedText:    cleaned,
		PublishedAt:    item.PublishedAt,
		FetchedAt:      now,
		RelevanceScore: score,
		Importance:     importance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.store.RawItemStorage().SaveItem(record)
}

// applyBackoff pushes the source out for at least a minute, honoring a
// configured per-source rate limit when longer.
func (s *Service) applyBackoff(source *models.NewsSource, reason string, now time.Time) {
	delay := 60
	if source.RateLimitSeconds > delay {
		delay = source.RateLimitSeconds
	}
	source.BackoffUntil = now.Add(time.Duration(delay) * time.Second)
	s.recordSourceError(source, reason, now)
}

func (s *Service) recordSourceError(source *models.NewsSource, errText string, now time.Time) {
	source.FailureCount++
	if len(errText) > 2000 {
		errText = errText[:2000]
	}
	source.LastError = errText
	source.UpdatedAt = now
	if err := s.store.SourceStorage().SaveNewsSource(source); err != nil {
		s.logger.Warn().Err(err).Str("source", source.Name).Msg("Failed to record source error")
	}
}
