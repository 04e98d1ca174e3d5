// Package db
package db

import (
	"context"
	"time"

	"github.com/amirphl/mlsignal/internal/candle"
)

// Storage is the interface for candle persistence.
type Storage interface {
	SaveCandle(ctx context.Context, c candle.Candle) error
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error)
	GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error)
	GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error)
	DeleteCandlesInRange(ctx context.Context, symbol, timeframe, source string, start, end time.Time) error
}

var (
	_ Storage = (*Default)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
