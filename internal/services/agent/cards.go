package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/nousnews/internal/models"
	"github.com/ternarybob/nousnews/internal/services/period"
	"github.com/ternarybob/nousnews/internal/services/relevance"
	"github.com/ternarybob/nousnews/internal/services/sources"
)

// loadRecords returns the relevance-gated, deduplicated items in
// [start, end), newest first. Items are re-scored at load so a raised
// floor takes effect without re-ingesting.
func (s *Service) loadRecords(start, end time.Time) ([]*models.RawItem, error) {
	items, err := s.store.RawItemStorage().GetItemsInWindow(start, end)
	if err != nil {
		return nil, err
	}

	var records []*models.RawItem
	seen := map[string]bool{}
	for _, item := range items {
		cleaned := item.CleanedText
		if cleaned == "" {
			cleaned = CleanText(item.BestText())
		}
		if relevance.Score(cleaned, item.Title) < s.config.Agent.MinRelevanceScore {
			continue
		}
		key := item.URL
		if key == "" {
			key = sources.DedupeKey(sources.NormalizedItem{Title: item.Title, PublishedAt: item.PublishedAt})
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, item)
	}
	return records, nil
}

// refreshDraftCard rebuilds the draft card for a still-open window.
// Used for both the current hour card and the rolling 24h card; when
// the inputs have not changed since the last pass the rewrite is
// skipped.
func (s *Service) refreshDraftCard(ctx context.Context, rc *runContext, tf models.Timeframe, win period.Window, now time.Time) error {
	existing, err := s.store.CardStorage().GetCardByPeriod(tf, win.Start)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsFinal() {
		return nil
	}

	loadEnd := win.End
	if now.Before(loadEnd) {
		loadEnd = now
	}
	records, err := s.loadRecords(win.Start, loadEnd)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	publishedAt := newestPublished(records, now)
	if existing != nil && s.config.Agent.SkipUnchangedDailyCard {
		sameCount := existing.ArticleCount == len(records)
		sameOrNewer := !existing.PublishedAt.IsZero() && !existing.PublishedAt.Before(publishedAt)
		if sameCount && sameOrNewer && existing.HasContent() {
			s.logEvent(rc.run.UUID, models.LogStepCardGeneration, levelInfo, "draft_card_unchanged_skipped", "", map[string]interface{}{
				"timeframe":    string(tf),
				"period_start": win.Start,
				"period_end":   win.End,
				"item_count":   len(records),
				"card_slug":    existing.Slug,
			})
			return nil
		}
	}

	card, err := s.getOrCreateCard(tf, win.Start, win.End, models.CardStatusDraft)
	if err != nil {
		return err
	}

	payload := s.buildMainPayload(ctx, rc, records, tf, win.Start, win.End)
	s.applyPayload(card, payload, records, publishedAt, models.CardStatusDraft)
	if err := s.store.CardStorage().SaveCard(card); err != nil {
		return err
	}
	if err := s.upsertCardArticles(card, payload, s.buildSideArticles(records)); err != nil {
		return err
	}
	s.ensureCardAssets(card)

	s.logEvent(rc.run.UUID, models.LogStepCardGeneration, levelInfo, "draft_card_refreshed", "", map[string]interface{}{
		"timeframe":    string(tf),
		"period_start": win.Start,
		"period_end":   win.End,
		"item_count":   len(records),
		"card_slug":    card.Slug,
		"article_slug": payload.Slug,
		"title":        card.Title,
	})
	return nil
}

// finalizeStaleDraftCards forces lingering drafts to final. Non-hour
// drafts finalize as soon as their period has elapsed; hour drafts get
// swept only past the stale cutoff, since the due-hourly path owns
// their normal finalization. Drafts that never received a main article
// but carry content get a minimal one synthesized from the card fields.
func (s *Service) finalizeStaleDraftCards(rc *runContext, now time.Time) int {
	finalized := 0
	cutoff := now.Add(-time.Duration(s.config.Agent.StaleCardCutoffHours) * time.Hour)

	for _, tf := range models.Timeframes {
		boundary := now
		if tf == models.TimeframeHour {
			boundary = cutoff
		}
		drafts, err := s.store.CardStorage().GetDraftCardsBefore(tf, boundary)
		if err != nil {
			s.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("Failed to load stale draft cards")
			continue
		}
		for _, card := range drafts {
			main, err := s.store.CardStorage().GetMainArticle(card.UUID)
			if err != nil {
				continue
			}
			if main == nil && card.HasContent() {
				payload := cardPayload{
					Title:            ensureInformativeTitle(card.Title, nil, card.Timeframe, card.PeriodStart),
					Summary:          strings.TrimSpace(card.Summary),
					Body:             strings.TrimSpace(card.Body),
					References:       normalizeReferences(card.References, s.config.Agent.MaxReferences),
					Importance:       defaultImportance(card.Importance),
					ImportanceReason: strings.TrimSpace(card.ImportanceReason),
				}
				if err := s.upsertCardArticles(card, payload, nil); err != nil {
					s.logger.Warn().Err(err).Str("card", card.Slug).Msg("Failed to synthesize main article for stale card")
					continue
				}
			}
			card.Status = models.CardStatusFinal
			card.UpdatedAt = now
			if err := s.store.CardStorage().SaveCard(card); err != nil {
				s.logger.Warn().Err(err).Str("card", card.Slug).Msg("Failed to finalize stale card")
				continue
			}
			finalized++
			s.logEvent(rc.run.UUID, models.LogStepCardGeneration, levelInfo, "stale_draft_card_finalized", "", map[string]interface{}{
				"timeframe":    string(card.Timeframe),
				"period_start": card.PeriodStart,
				"period_end":   card.PeriodEnd,
				"slug":         card.Slug,
			})
		}
	}
	return finalized
}

// finalizeDueHourlyCards backfills and finalizes every closed hour
// window since the last final hourly card, clamped to the backfill
// horizon so a long-idle instance does not replay history.
func (s *Service) finalizeDueHourlyCards(ctx context.Context, rc *runContext, now time.Time) int {
	latestClosed, ok := period.LatestClosedStart(models.TimeframeHour, now)
	if !ok || latestClosed.Year() < 2000 {
		return 0
	}

	from, ok := s.hourlyCursor(latestClosed)
	if !ok {
		return 0
	}

	lowerBound := latestClosed.Add(-time.Duration(s.config.Agent.HourlyBackfillHours-1) * time.Hour)
	if from.Before(lowerBound) {
		from = lowerBound
	}

	starts := period.DueStarts(models.TimeframeHour, from, now, 0)
	if len(starts) == 0 {
		s.logEvent(rc.run.UUID, models.LogStepCardGeneration, levelInfo, "no_due_hourly_periods", "", map[string]interface{}{
			"latest_closed_start": latestClosed,
		})
		return 0
	}

	finalized := 0
	for _, start := range starts {
		if s.finalizeCardForPeriod(ctx, rc, models.TimeframeHour, start) {
			finalized++
		}
	}
	return finalized
}

// hourlyCursor finds where hourly backfill resumes: after the last
// final hourly card, or from the earliest ingested item on a fresh
// database.
func (s *Service) hourlyCursor(latestClosed time.Time) (time.Time, bool) {
	lastFinal, err := s.store.CardStorage().GetLatestFinalCard(models.TimeframeHour)
	if err == nil && lastFinal != nil && !lastFinal.PeriodStart.After(latestClosed) {
		return period.Next(models.TimeframeHour, lastFinal.PeriodStart), true
	}

	earliest, err := s.store.RawItemStorage().GetEarliestItem()
	if err != nil || earliest == nil {
		return time.Time{}, false
	}
	return period.For(models.TimeframeHour, earliest.PublishedAt).Start, true
}

// finalizeDueAggregateCards finalizes every closed week and month
// window since the last final card of that timeframe, capped at the
// aggregate backfill limit.
func (s *Service) finalizeDueAggregateCards(ctx context.Context, rc *runContext, now time.Time) int {
	finalized := 0
	for _, tf := range []models.Timeframe{models.TimeframeWeek, models.TimeframeMonth} {
		latestClosed, ok := period.LatestClosedStart(tf, now)
		if !ok || latestClosed.Year() < 2000 {
			continue
		}

		from, ok := s.aggregateCursor(tf, latestClosed)
		if !ok {
			continue
		}

		for _, start := range period.DueStarts(tf, from, now, s.config.Agent.AggregateBackfill) {
			if s.finalizeCardForPeriod(ctx, rc, tf, start) {
				finalized++
			}
		}
	}
	return finalized
}

// aggregateCursor finds where week/month backfill resumes: after the
// last final card of the timeframe, or from the window containing the
// earliest hourly card.
func (s *Service) aggregateCursor(tf models.Timeframe, latestClosed time.Time) (time.Time, bool) {
	lastFinal, err := s.store.CardStorage().GetLatestFinalCard(tf)
	if err == nil && lastFinal != nil && !lastFinal.PeriodStart.After(latestClosed) {
		return period.Next(tf, lastFinal.PeriodStart), true
	}

	earliest, err := s.store.RawItemStorage().GetEarliestItem()
	if err != nil || earliest == nil {
		return time.Time{}, false
	}
	return period.For(tf, earliest.PublishedAt).Start, true
}

// finalizeCardForPeriod builds and finalizes the card for one closed
// window. Already-final cards with a main article are left untouched.
func (s *Service) finalizeCardForPeriod(ctx context.Context, rc *runContext, tf models.Timeframe, start time.Time) bool {
	end := period.For(tf, start).End

	existing, err := s.store.CardStorage().GetCardByPeriod(tf, start)
	if err != nil {
		return false
	}
	if existing != nil && existing.IsFinal() {
		main, err := s.store.CardStorage().GetMainArticle(existing.UUID)
		if err == nil && main != nil {
			return false
		}
	}

	records, err := s.loadRecords(start, end)
	if err != nil || len(records) == 0 {
		return false
	}

	card, err := s.getOrCreateCard(tf, start, end, models.CardStatusFinal)
	if err != nil {
		return false
	}

	payload := s.buildMainPayload(ctx, rc, records, tf, start, end)
	s.applyPayload(card, payload, records, newestPublished(records, end), models.CardStatusFinal)
	if err := s.store.CardStorage().SaveCard(card); err != nil {
		return false
	}
	if err := s.upsertCardArticles(card, payload, s.buildSideArticles(records)); err != nil {
		return false
	}
	s.ensureCardAssets(card)

	s.logEvent(rc.run.UUID, models.LogStepCardGeneration, levelInfo, "card_finalized", "", map[string]interface{}{
		"timeframe":    string(tf),
		"period_start": start,
		"period_end":   end,
		"item_count":   len(records),
		"card_slug":    card.Slug,
		"article_slug": payload.Slug,
		"title":        card.Title,
	})
	return true
}

// getOrCreateCard loads the card for (timeframe, period start) or
// creates it with the given initial status. Slug and period end are
// realigned on load in case the slug scheme changed.
func (s *Service) getOrCreateCard(tf models.Timeframe, start, end time.Time, status string) (*models.Card, error) {
	slug := period.CardSlug(tf, start)

	card, err := s.store.CardStorage().GetCardByPeriod(tf, start)
	if err != nil {
		return nil, err
	}
	if card == nil {
		now := time.Now().UTC()
		card = &models.Card{
			UUID:        uuid.New().String(),
			Timeframe:   tf,
			PeriodStart: start,
			PeriodEnd:   end,
			Slug:        slug,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CardStorage().SaveCard(card); err != nil {
			return nil, err
		}
		return card, nil
	}

	changed := false
	if !card.PeriodEnd.Equal(end) {
		card.PeriodEnd = end
		changed = true
	}
	if card.Slug != slug {
		card.Slug = slug
		changed = true
	}
	if changed {
		if err := s.store.CardStorage().SaveCard(card); err != nil {
			return nil, err
		}
	}
	return card, nil
}

// applyPayload writes the composed narrative onto the card
func (s *Service) applyPayload(card *models.Card, payload cardPayload, records []*models.RawItem, publishedAt time.Time, status string) {
	card.Title = payload.Title
	card.Summary = payload.Summary
	card.Body = payload.Body
	card.References = payload.References
	card.Impacts = payload.Impacts
	card.Importance = payload.Importance
	card.ImportanceReason = payload.ImportanceReason
	card.SourceLabel = sourceLabel(records)
	card.PublishedAt = publishedAt
	card.ArticleCount = len(records)
	card.Status = status
	card.UpdatedAt = time.Now().UTC()
}

// upsertCardArticles writes the main article (keyed by the card UUID so
// refreshes rewrite in place) and creates side articles once per card.
func (s *Service) upsertCardArticles(card *models.Card, payload cardPayload, sideRecords []*models.RawItem) error {
	now := time.Now().UTC()
	mainTitle := payload.Title
	if mainTitle == "" {
		mainTitle = "Financial Market Impact Update"
	}

	main, err := s.store.CardStorage().GetMainArticle(card.UUID)
	if err != nil {
		return err
	}
	if main == nil {
		main = &models.CardArticle{
			UUID:      card.UUID,
			CardUUID:  card.UUID,
			Kind:      models.ArticleKindMain,
			CreatedAt: now,
		}
	}
	main.Slug = buildArticleSlug(mainTitle, card.PeriodStart, card.UUID, models.ArticleKindMain)
	main.Title = mainTitle
	main.Summary = payload.Summary
	main.Body = payload.Body
	main.Source = card.SourceLabel
	main.Importance = defaultImportance(payload.Importance)
	main.Impacts = payload.Impacts
	main.PublishedAt = card.PublishedAt
	main.UpdatedAt = now
	if len(payload.References) > 0 {
		main.URL = payload.References[0]
	}
	if err := s.store.CardStorage().SaveArticle(main); err != nil {
		return err
	}

	hasSides, err := s.store.CardStorage().HasSideArticles(card.UUID)
	if err != nil || hasSides {
		return err
	}
	for _, record := range sideRecords {
		title := record.Title
		if title == "" {
			title = record.Summary
		}
		title = compactText(sanitizeGeneratedText(title, false), 120)
		if title == "" {
			title = "Market Detail"
		}
		summary := record.Summary
		if summary == "" {
			summary = record.Content
		}
		summary = compactText(sanitizeGeneratedText(summary, false), 420)
		body := record.Content
		if body == "" {
			body = summary
		}
		body = compactText(sanitizeGeneratedText(body, true), 1300)

		articleUUID := newArticleUUID()
		side := &models.CardArticle{
			UUID:        articleUUID,
			CardUUID:    card.UUID,
			Kind:        models.ArticleKindSide,
			Slug:        buildArticleSlug(title, card.PeriodStart, articleUUID, models.ArticleKindSide),
			Title:       title,
			Summary:     summary,
			Body:        body,
			Source:      record.SourceName,
			URL:         record.URL,
			Importance:  1,
			PublishedAt: record.PublishedAt,
			FetchedAt:   record.FetchedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CardStorage().SaveArticle(side); err != nil {
			return err
		}
	}
	return nil
}

// ensureCardAssets mirrors the enabled price source symbols onto the
// card so the frontend can chart them alongside the narrative.
func (s *Service) ensureCardAssets(card *models.Card) {
	priceSources, err := s.store.SourceStorage().ListPriceSources(true)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list price sources for card assets")
		return
	}

	seriesLabels := map[string]string{}
	if series, err := s.store.PriceStorage().ListSeries(false); err == nil {
		for _, sr := range series {
			seriesLabels[sr.Symbol] = sr.Label
		}
	}

	seen := map[string]bool{}
	for _, source := range priceSources {
		symbol := strings.TrimSpace(source.Symbol)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		label := seriesLabels[symbol]
		if label == "" {
			label = source.Name
		}
		if label == "" {
			label = symbol
		}

		asset := &models.CardAsset{
			ID:        card.UUID + "|" + symbol,
			CardUUID:  card.UUID,
			Symbol:    symbol,
			Label:     label,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CardStorage().SaveCardAsset(asset); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to save card asset")
		}
	}

	// Symbols whose source has since been disabled come off the card
	existing, err := s.store.CardStorage().GetCardAssets(card.UUID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list card assets for pruning")
		return
	}
	for _, asset := range existing {
		if seen[asset.Symbol] {
			continue
		}
		if err := s.store.CardStorage().DeleteCardAsset(card.UUID, asset.Symbol); err != nil {
			s.logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Failed to prune card asset")
		}
	}
}

func newestPublished(records []*models.RawItem, fallback time.Time) time.Time {
	newest := time.Time{}
	for _, record := range records {
		if record.PublishedAt.After(newest) {
			newest = record.PublishedAt
		}
	}
	if newest.IsZero() {
		return fallback
	}
	return newest
}

// sourceLabel joins the distinct contributing source names in first-seen order
func sourceLabel(records []*models.RawItem) string {
	var names []string
	seen := map[string]bool{}
	for _, record := range records {
		if record.SourceName == "" || seen[record.SourceName] {
			continue
		}
		seen[record.SourceName] = true
		names = append(names, record.SourceName)
	}
	label := strings.Join(names, ", ")
	if len(label) > 255 {
		label = label[:255]
	}
	return label
}

func defaultImportance(value int) int {
	if value < 1 || value > 3 {
		return 1
	}
	return value
}
