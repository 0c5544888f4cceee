package prices

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/nousnews/internal/interfaces"
	"github.com/ternarybob/nousnews/internal/models"
)

// Bucket is an aggregated OHLCV bar for chart rendering
type Bucket struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BucketSpec returns the bar width and count used to chart a symbol
// alongside a card of the given timeframe.
func BucketSpec(tf models.Timeframe) (time.Duration, int) {
	switch tf {
	case models.TimeframeHour:
		return time.Minute, 60
	case models.TimeframeWeek:
		return 4 * time.Hour, 42
	case models.TimeframeMonth:
		return 24 * time.Hour, 30
	default:
		return 15 * time.Minute, 96
	}
}

// SeriesBuckets aggregates the symbol's minute candles into chart bars
// ending at the given time. Bars with no underlying candles are
// omitted rather than zero-filled.
func SeriesBuckets(store interfaces.PriceStorage, symbol string, tf models.Timeframe, end time.Time) ([]Bucket, error) {
	step, count := BucketSpec(tf)
	end = end.UTC()
	start := end.Add(-step * time.Duration(count))

	candles, err := store.GetCandlesInWindow(symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	grouped := make(map[time.Time]*Bucket)
	var order []time.Time
	for _, candle := range candles {
		slot := candle.Timestamp.UTC().Truncate(step)
		bucket, ok := grouped[slot]
		if !ok {
			bucket = &Bucket{
				Timestamp: slot,
				Open:      candle.Open,
				High:      candle.High,
				Low:       candle.Low,
				Close:     candle.Close,
				Volume:    candle.Volume,
			}
			grouped[slot] = bucket
			order = append(order, slot)
			continue
		}
		if candle.High > bucket.High {
			bucket.High = candle.High
		}
		if candle.Low < bucket.Low {
			bucket.Low = candle.Low
		}
		bucket.Close = candle.Close
		bucket.Volume += candle.Volume
	}

	buckets := make([]Bucket, 0, len(order))
	for _, slot := range order {
		buckets = append(buckets, *grouped[slot])
	}
	return buckets, nil
}
