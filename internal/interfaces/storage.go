package interfaces

import (
	"time"

	"github.com/ternarybob/nousnews/internal/models"
)

// RawItemStorage - interface for raw news item persistence
type RawItemStorage interface {
	SaveItem(item *models.RawItem) error
	GetItem(url string) (*models.RawItem, error)
	HasItem(url string) (bool, error)
	GetItemsInWindow(start, end time.Time) ([]*models.RawItem, error)
	GetEarliestItem() (*models.RawItem, error)
	CountItems() (int, error)
	DeleteItemsBefore(cutoff time.Time) (int, error)
}

// CardStorage - interface for card, card article, and card asset persistence
type CardStorage interface {
	SaveCard(card *models.Card) error
	GetCard(uuid string) (*models.Card, error)
	GetCardByPeriod(tf models.Timeframe, periodStart time.Time) (*models.Card, error)
	GetCardBySlug(slug string) (*models.Card, error)
	GetLatestFinalCard(tf models.Timeframe) (*models.Card, error)
	GetDraftCardsBefore(tf models.Timeframe, cutoff time.Time) ([]*models.Card, error)
	ListCards(tf models.Timeframe, limit int) ([]*models.Card, error)
	CountCards(tf models.Timeframe) (int, error)

	SaveArticle(article *models.CardArticle) error
	GetMainArticle(cardUUID string) (*models.CardArticle, error)
	GetArticlesByCard(cardUUID string) ([]*models.CardArticle, error)
	GetArticleBySlug(slug string) (*models.CardArticle, error)
	HasSideArticles(cardUUID string) (bool, error)

	SaveCardAsset(asset *models.CardAsset) error
	GetCardAssets(cardUUID string) ([]*models.CardAsset, error)
	DeleteCardAsset(cardUUID, symbol string) error
}

// SourceStorage - interface for news and price source persistence
type SourceStorage interface {
	SaveNewsSource(source *models.NewsSource) error
	GetNewsSource(id string) (*models.NewsSource, error)
	ListNewsSources(enabledOnly bool) ([]*models.NewsSource, error)

	SavePriceSource(source *models.PriceSource) error
	GetPriceSource(id string) (*models.PriceSource, error)
	ListPriceSources(enabledOnly bool) ([]*models.PriceSource, error)
}

// RunStorage - interface for agent run persistence
type RunStorage interface {
	SaveRun(run *models.AgentRun) error
	GetRun(uuid string) (*models.AgentRun, error)
	GetActiveRun() (*models.AgentRun, error)
	ListRuns(limit int) ([]*models.AgentRun, error)
	DeleteRunsBefore(cutoff time.Time) (int, error)
}

// LogStorage - interface for structured pipeline log events
type LogStorage interface {
	AppendEvent(event *models.AgentLogEvent) error
	GetEventsByRun(runUUID string, limit int) ([]*models.AgentLogEvent, error)
	DeleteEventsBefore(cutoff time.Time) (int, error)
}

// PriceStorage - interface for asset series and candle persistence
type PriceStorage interface {
	SaveSeries(series *models.AssetSeries) error
	ListSeries(enabledOnly bool) ([]*models.AssetSeries, error)

	UpsertCandle(symbol string, at time.Time, price, volume float64) (*models.AssetCandle, error)
	GetCandlesInWindow(symbol string, start, end time.Time) ([]*models.AssetCandle, error)
	CountCandles(symbol string) (int, error)

	GetMemoryState(id string) (*models.MemoryState, error)
	SaveMemoryState(state *models.MemoryState) error
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	RawItemStorage() RawItemStorage
	CardStorage() CardStorage
	SourceStorage() SourceStorage
	RunStorage() RunStorage
	LogStorage() LogStorage
	PriceStorage() PriceStorage
	Close() error
}
