package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/amirphl/mlsignal/internal/candle"
	"github.com/amirphl/mlsignal/internal/db/conf"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// executeWithTransaction runs fn in the transaction carried by ctx, or in a new
// one that is committed when fn succeeds.
func (p *Default) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *Default) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// Default is the PostgreSQL candle store.
type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("postgres: nil database handle")
	}
	return &Default{db: c.DB}, nil
}

// Open connects to connStr and checks the connection.
func Open(ctx context.Context, connStr string, maxOpen, maxIdle int) (*Default, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return New(conf.Config{DB: sqlDB, ConnStr: connStr})
}

// GetDB returns the underlying connection pool.
func (p *Default) GetDB() *sql.DB {
	return p.db
}

func (p *Default) Close() error {
	return p.db.Close()
}

const upsertCandle = `
	INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (symbol, timeframe, timestamp, source) DO UPDATE SET
		open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
		close=EXCLUDED.close, volume=EXCLUDED.volume`

// SaveCandle saves a single candle to the database
func (p *Default) SaveCandle(ctx context.Context, c candle.Candle) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candle for %s %s at %s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsertCandle,
			strings.ToUpper(c.Symbol), c.Timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Source)
		if err != nil {
			return fmt.Errorf("failed to save candle for %s %s at %s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
		}
		return nil
	})
}

// SaveCandles upserts candles in one transaction. Nothing is written when any
// candle is invalid.
func (p *Default) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertCandle)
		if err != nil {
			return fmt.Errorf("failed to prepare insert statement: %w", err)
		}
		defer stmt.Close()

		for i, c := range candles {
			if _, err := stmt.ExecContext(ctx,
				strings.ToUpper(c.Symbol), c.Timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume, c.Source); err != nil {
				return fmt.Errorf("failed to save candle at index %d (%s %s at %s): %w",
					i, c.Symbol, c.Timeframe, c.Timestamp, err)
			}
		}
		return nil
	})
}

func scanCandles(rows *sql.Rows) ([]candle.Candle, error) {
	var candles []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Symbol, &c.Timeframe, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candle rows: %w", err)
	}
	return candles, nil
}

// GetCandles retrieves candles in [start, end) for a symbol and timeframe,
// optionally restricted to one source, oldest first.
func (p *Default) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4`
	args := []any{strings.ToUpper(symbol), timeframe, start.UTC(), end.UTC()}

	if source != "" {
		query += " AND source=$5"
		args = append(args, source)
	}

	query += " ORDER BY timestamp ASC"

	rows, err := p.queryWithTransaction(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles in range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetLatestCandle returns the newest candle, or nil when there is none.
func (p *Default) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	rows, err := p.queryWithTransaction(ctx, `
		SELECT timestamp, open, high, low, close, volume, symbol, timeframe, source
		FROM candles
		WHERE symbol=$1 AND timeframe=$2
		ORDER BY timestamp DESC LIMIT 1`,
		strings.ToUpper(symbol), timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil || len(candles) == 0 {
		return nil, err
	}
	return &candles[0], nil
}

// GetCandleCount returns the count of candles in a time range
func (p *Default) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	var count int
	rows, err := p.queryWithTransaction(ctx, `
		SELECT COUNT(*) FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4`,
		strings.ToUpper(symbol), timeframe, start.UTC(), end.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to get candle count: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan candle count: %w", err)
		}
	}
	return count, rows.Err()
}

// DeleteCandlesInRange removes candles in a specific time range for a symbol and timeframe
func (p *Default) DeleteCandlesInRange(ctx context.Context, symbol, timeframe, source string, start, end time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM candles WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4`
		args := []any{strings.ToUpper(symbol), timeframe, start.UTC(), end.UTC()}

		if source != "" {
			query += " AND source=$5"
			args = append(args, source)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete candles in range: %w", err)
		}
		return nil
	})
}
