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

// PriceStorage implements the PriceStorage interface for Badger
type PriceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPriceStorage creates a new PriceStorage instance
func NewPriceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PriceStorage {
	return &PriceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PriceStorage) SaveSeries(series *models.AssetSeries) error {
	if series.Symbol == "" {
		return fmt.Errorf("series symbol is required")
	}

	now := time.Now().UTC()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	series.UpdatedAt = now

	if err := s.db.Store().Upsert("series:"+series.Symbol, series); err != nil {
		return fmt.Errorf("failed to save asset series: %w", err)
	}
	return nil
}

func (s *PriceStorage) ListSeries(enabledOnly bool) ([]*models.AssetSeries, error) {
	query := &badgerhold.Query{}
	if enabledOnly {
		query = badgerhold.Where("Enabled").Eq(true)
	}

	var series []models.AssetSeries
	if err := s.db.Store().Find(&series, query); err != nil {
		return nil, fmt.Errorf("failed to list asset series: %w", err)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Symbol < series[j].Symbol
	})

	result := make([]*models.AssetSeries, len(series))
	for i := range series {
		result[i] = &series[i]
	}
	return result, nil
}

// UpsertCandle merges an observation into the symbol's minute bucket:
// first observation sets OHLC to the price; later observations in the
// same minute raise the high, lower the low, move the close, and keep
// the largest volume seen.
func (s *PriceStorage) UpsertCandle(symbol string, at time.Time, price, volume float64) (*models.AssetCandle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("candle symbol is required")
	}

	minute := at.UTC().Truncate(time.Minute)
	id := models.CandleID(symbol, minute)
	now := time.Now().UTC()

	var candle models.AssetCandle
	err := s.db.Store().Get(id, &candle)
	if err == badgerhold.ErrNotFound {
		candle = models.AssetCandle{
			ID:        id,
			Symbol:    symbol,
			Timestamp: minute,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.Store().Insert(id, &candle); err != nil {
			return nil, fmt.Errorf("failed to insert candle: %w", err)
		}
		return &candle, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candle: %w", err)
	}

	if price > candle.High {
		candle.High = price
	}
	if price < candle.Low {
		candle.Low = price
	}
	candle.Close = price
	if volume > candle.Volume {
		candle.Volume = volume
	}
	candle.UpdatedAt = now

	if err := s.db.Store().Update(id, &candle); err != nil {
		return nil, fmt.Errorf("failed to update candle: %w", err)
	}
	return &candle, nil
}

// GetCandlesInWindow returns candles with timestamps in [start, end),
// oldest first.
func (s *PriceStorage) GetCandlesInWindow(symbol string, start, end time.Time) ([]*models.AssetCandle, error) {
	var candles []models.AssetCandle
	err := s.db.Store().Find(&candles,
		badgerhold.Where("Symbol").Eq(symbol).And("Timestamp").Ge(start).And("Timestamp").Lt(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	result := make([]*models.AssetCandle, len(candles))
	for i := range candles {
		result[i] = &candles[i]
	}
	return result, nil
}

func (s *PriceStorage) CountCandles(symbol string) (int, error) {
	count, err := s.db.Store().Count(&models.AssetCandle{}, badgerhold.Where("Symbol").Eq(symbol))
	if err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return int(count), nil
}

// GetMemoryState returns the stored memory row, or nil when absent
func (s *PriceStorage) GetMemoryState(id string) (*models.MemoryState, error) {
	var state models.MemoryState
	if err := s.db.Store().Get("memory:"+id, &state); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get memory state: %w", err)
	}
	return &state, nil
}

func (s *PriceStorage) SaveMemoryState(state *models.MemoryState) error {
	if state.ID == "" {
		return fmt.Errorf("memory state ID is required")
	}
	state.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert("memory:"+state.ID, state); err != nil {
		return fmt.Errorf("failed to save memory state: %w", err)
	}
	return nil
}
