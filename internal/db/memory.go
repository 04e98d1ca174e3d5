package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/mlsignal/internal/candle"
)

// MemoryStorage keeps candles in a map. It is used for CSV backed runs and in
// tests.
type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp|source
	candles map[string]candle.Candle
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		candles: make(map[string]candle.Candle),
	}
}

func candleKey(symbol, timeframe string, ts time.Time, source string) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + source
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

func (m *MemoryStorage) SaveCandle(ctx context.Context, c candle.Candle) error {
	return m.SaveCandles(ctx, []candle.Candle{c})
}

func (m *MemoryStorage) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		c.Timestamp = c.Timestamp.UTC()
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source)] = c
	}
	return nil
}

func (m *MemoryStorage) matching(symbol, timeframe, source string, keep func(candle.Candle) bool) []candle.Candle {
	var out []candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if source != "" && c.Source != source {
			continue
		}
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (m *MemoryStorage) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, end = start.UTC(), end.UTC()
	return m.matching(symbol, timeframe, source, func(c candle.Candle) bool {
		return inRange(c.Timestamp, start, end)
	}), nil
}

func (m *MemoryStorage) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.matching(symbol, timeframe, "", func(candle.Candle) bool { return true })
	if len(all) == 0 {
		return nil, nil
	}
	latest := all[len(all)-1]
	return &latest, nil
}

func (m *MemoryStorage) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	cs, err := m.GetCandles(ctx, symbol, timeframe, "", start, end)
	if err != nil {
		return 0, err
	}
	return len(cs), nil
}

func (m *MemoryStorage) DeleteCandlesInRange(ctx context.Context, symbol, timeframe, source string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end = start.UTC(), end.UTC()
	for k, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if source != "" && c.Source != source {
			continue
		}
		if inRange(c.Timestamp, start, end) {
			delete(m.candles, k)
		}
	}
	return nil
}
