package models

import (
	"fmt"
	"time"
)

// AssetSeries identifies a tracked price series
type AssetSeries struct {
	Symbol    string    `json:"symbol"`
	Label     string    `json:"label,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssetCandle is a one-minute OHLCV bucket for an asset series.
// The ID is symbol + "|" + unix minute so repeated observations in
// the same minute merge into one candle.
type AssetCandle struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol" badgerhold:"index"`
	Timestamp time.Time `json:"timestamp" badgerhold:"index"` // Floored to the minute, UTC
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CandleID builds the storage key for a symbol and minute bucket
func CandleID(symbol string, minute time.Time) string {
	return fmt.Sprintf("%s|%d", symbol, minute.UTC().Truncate(time.Minute).Unix())
}

// Validate validates the candle
func (c *AssetCandle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle symbol is required")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("candle timestamp is required")
	}
	if c.High < c.Low {
		return fmt.Errorf("candle high must not be below low")
	}
	return nil
}

// MemoryState holds the economist agent's rolling memory text.
// A single row keyed by ID "economist" is maintained.
type MemoryState struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
