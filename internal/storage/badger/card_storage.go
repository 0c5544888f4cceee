package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CardStorage implements the CardStorage interface for Badger
type CardStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCardStorage creates a new CardStorage instance
func NewCardStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CardStorage {
	return &CardStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CardStorage) SaveCard(card *models.Card) error {
	if err := card.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	if err := s.db.Store().Upsert(card.UUID, card); err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	return nil
}

func (s *CardStorage) GetCard(uuid string) (*models.Card, error) {
	var card models.Card
	if err := s.db.Store().Get(uuid, &card); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("card not found: %s", uuid)
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &card, nil
}

// GetCardByPeriod returns the card for a timeframe and period start, or
// nil when no card exists yet.
func (s *CardStorage) GetCardByPeriod(tf models.Timeframe, periodStart time.Time) (*models.Card, error) {
	var cards []models.Card
	err := s.db.Store().Find(&cards,
		badgerhold.Where("Timeframe").Eq(tf).And("PeriodStart").Eq(periodStart))
	if err != nil {
		return nil, fmt.Errorf("failed to find card by period: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil
	}
	return &cards[0], nil
}

func (s *CardStorage) GetCardBySlug(slug string) (*models.Card, error) {
	var cards []models.Card
	err := s.db.Store().Find(&cards, badgerhold.Where("Slug").Eq(slug).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find card by slug: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil
	}
	return &cards[0], nil
}

// GetLatestFinalCard returns the final card with the greatest period
// start for the timeframe, or nil when none exist.
func (s *CardStorage) GetLatestFinalCard(tf models.Timeframe) (*models.Card, error) {
	var cards []models.Card
	err := s.db.Store().Find(&cards,
		badgerhold.Where("Timeframe").Eq(tf).And("Status").Eq(models.CardStatusFinal))
	if err != nil {
		return nil, fmt.Errorf("failed to find final cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil
	}

	latest := &cards[0]
	for i := range cards {
		if cards[i].PeriodStart.After(latest.PeriodStart) {
			latest = &cards[i]
		}
	}
	return latest, nil
}

// GetDraftCardsBefore returns draft cards of the timeframe whose period
// end is before the cutoff.
func (s *CardStorage) GetDraftCardsBefore(tf models.Timeframe, cutoff time.Time) ([]*models.Card, error) {
	var cards []models.Card
	err := s.db.Store().Find(&cards,
		badgerhold.Where("Timeframe").Eq(tf).And("Status").Eq(models.CardStatusDraft).And("PeriodEnd").Lt(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to find draft cards: %w", err)
	}

	result := make([]*models.Card, len(cards))
	for i := range cards {
		result[i] = &cards[i]
	}
	return result, nil
}

// ListCards returns cards of the timeframe, newest period first
func (s *CardStorage) ListCards(tf models.Timeframe, limit int) ([]*models.Card, error) {
	var cards []models.Card
	if err := s.db.Store().Find(&cards, badgerhold.Where("Timeframe").Eq(tf)); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].PeriodStart.After(cards[j].PeriodStart)
	})
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}

	result := make([]*models.Card, len(cards))
	for i := range cards {
		result[i] = &cards[i]
	}
	return result, nil
}

func (s *CardStorage) CountCards(tf models.Timeframe) (int, error) {
	count, err := s.db.Store().Count(&models.Card{}, badgerhold.Where("Timeframe").Eq(tf))
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return int(count), nil
}

func (s *CardStorage) SaveArticle(article *models.CardArticle) error {
	if err := article.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	if err := s.db.Store().Upsert(article.UUID, article); err != nil {
		return fmt.Errorf("failed to save card article: %w", err)
	}
	return nil
}

// GetMainArticle returns the card's main article, or nil when absent
func (s *CardStorage) GetMainArticle(cardUUID string) (*models.CardArticle, error) {
	var articles []models.CardArticle
	err := s.db.Store().Find(&articles,
		badgerhold.Where("CardUUID").Eq(cardUUID).And("Kind").Eq(models.ArticleKindMain))
	if err != nil {
		return nil, fmt.Errorf("failed to find main article: %w", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

func (s *CardStorage) GetArticlesByCard(cardUUID string) ([]*models.CardArticle, error) {
	var articles []models.CardArticle
	if err := s.db.Store().Find(&articles, badgerhold.Where("CardUUID").Eq(cardUUID)); err != nil {
		return nil, fmt.Errorf("failed to find card articles: %w", err)
	}

	result := make([]*models.CardArticle, len(articles))
	for i := range articles {
		result[i] = &articles[i]
	}
	return result, nil
}

func (s *CardStorage) GetArticleBySlug(slug string) (*models.CardArticle, error) {
	var articles []models.CardArticle
	err := s.db.Store().Find(&articles, badgerhold.Where("Slug").Eq(slug).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug: %w", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

func (s *CardStorage) HasSideArticles(cardUUID string) (bool, error) {
	count, err := s.db.Store().Count(&models.CardArticle{},
		badgerhold.Where("CardUUID").Eq(cardUUID).And("Kind").Eq(models.ArticleKindSide))
	if err != nil {
		return false, fmt.Errorf("failed to count side articles: %w", err)
	}
	return count > 0, nil
}

func (s *CardStorage) SaveCardAsset(asset *models.CardAsset) error {
	if asset.CardUUID == "" || asset.Symbol == "" {
		return fmt.Errorf("card asset requires card UUID and symbol")
	}
	if asset.ID == "" {
		asset.ID = asset.CardUUID + "|" + asset.Symbol
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(asset.ID, asset); err != nil {
		return fmt.Errorf("failed to save card asset: %w", err)
	}
	return nil
}

func (s *CardStorage) DeleteCardAsset(cardUUID, symbol string) error {
	err := s.db.Store().Delete(cardUUID+"|"+symbol, &models.CardAsset{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete card asset: %w", err)
	}
	return nil
}

func (s *CardStorage) GetCardAssets(cardUUID string) ([]*models.CardAsset, error) {
	var assets []models.CardAsset
	if err := s.db.Store().Find(&assets, badgerhold.Where("CardUUID").Eq(cardUUID)); err != nil {
		return nil, fmt.Errorf("failed to find card assets: %w", err)
	}

	result := make([]*models.CardAsset, len(assets))
	for i := range assets {
		result[i] = &assets[i]
	}
	return result, nil
}
