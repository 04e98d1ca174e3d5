// Package candle
package candle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/mlsignal/internal/tfutils"
)

// Candle is a single OHLCV observation for one symbol and timeframe.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// IsComplete checks if a candle is complete (its bucket has closed)
func (c *Candle) IsComplete() bool {
	now := time.Now().UTC()
	candleEnd := c.Timestamp.Add(tfutils.GetTimeframeDuration(c.Timeframe))
	return now.After(candleEnd)
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	if c.Timeframe == "" {
		return errors.New("candle timeframe cannot be empty")
	}
	return nil
}

// ErrDuplicateTimestamp is returned when two candles share an open time, e.g.
// the same bucket stored under two sources.
var ErrDuplicateTimestamp = errors.New("duplicate candle timestamp")

// ValidateAll validates every candle and checks that they all belong to the
// same symbol and timeframe with one candle per timestamp.
func ValidateAll(candles []Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol, timeframe := candles[0].Symbol, candles[0].Timeframe
	seen := make(map[int64]int, len(candles))
	for i := range candles {
		c := &candles[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d: %w", i, err)
		}
		if !strings.EqualFold(c.Symbol, symbol) {
			return fmt.Errorf("candle at index %d has different symbol: %s, expected: %s", i, c.Symbol, symbol)
		}
		if c.Timeframe != timeframe {
			return fmt.Errorf("candle at index %d has different timeframe: %s, expected: %s", i, c.Timeframe, timeframe)
		}
		ts := c.Timestamp.UnixNano()
		if j, ok := seen[ts]; ok {
			return fmt.Errorf("%w: %s at index %d and %d", ErrDuplicateTimestamp, c.Timestamp.UTC().Format(time.RFC3339), j, i)
		}
		seen[ts] = i
	}
	return nil
}

// SortByTime orders candles chronologically in place.
func SortByTime(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
}

// FindGaps returns the indexes whose candle does not directly follow the
// previous one. Candles must be sorted.
func FindGaps(candles []Candle) []int {
	if len(candles) < 2 {
		return nil
	}
	dur := tfutils.GetTimeframeDuration(candles[0].Timeframe)
	if dur == 0 {
		return nil
	}
	var gaps []int
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Truncate(dur).Sub(candles[i-1].Timestamp.Truncate(dur)) != dur {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// Series splits candles into column slices.
func Series(candles []Candle) (open, high, low, close, volume []float64) {
	n := len(candles)
	open = make([]float64, n)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	volume = make([]float64, n)
	for i, c := range candles {
		open[i] = c.Open
		high[i] = c.High
		low[i] = c.Low
		close[i] = c.Close
		volume[i] = c.Volume
	}
	return open, high, low, close, volume
}
