// Package journal persists strategy events to SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amirphl/mlsignal/internal/strategy/signal"
)

// EventSignal is the event type of journaled signals.
const EventSignal = "signal"

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string // e.g., "signal", "confirm", "error"
	Description string
	Data        map[string]any
}

// Journaler interface for journaling events.
type Journaler interface {
	LogEvent(ctx context.Context, event Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error)
}

var _ Journaler = (*SQLite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	time        INTEGER NOT NULL,
	type        TEXT    NOT NULL,
	description TEXT    NOT NULL,
	data        TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (type, time);`

// SQLite is a journal backed by a SQLite file.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func encodeData(data map[string]any) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	clean := make(map[string]any, len(data))
	for k, v := range data {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		clean[k] = v
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func insert(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, event Event) error {
	data, err := encodeData(event.Data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event data: %w", event.Type, err)
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO events (time, type, description, data) VALUES (?, ?, ?, ?)`,
		event.Time.UTC().UnixMilli(), event.Type, event.Description, data)
	if err != nil {
		return fmt.Errorf("failed to log %s event: %w", event.Type, err)
	}
	return nil
}

// LogEvent appends one event.
func (j *SQLite) LogEvent(ctx context.Context, event Event) error {
	return insert(ctx, j.db, event)
}

// GetEvents returns the events of eventType in [start, end), oldest first.
func (j *SQLite) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT time, type, description, data FROM events
		 WHERE type = ? AND time >= ? AND time < ?
		 ORDER BY time ASC, id ASC`,
		eventType, start.UTC().UnixMilli(), end.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ms   int64
			e    Event
			data sql.NullString
		)
		if err := rows.Scan(&ms, &e.Type, &e.Description, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Time = time.UnixMilli(ms).UTC()
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SignalEvent turns a signal into a journal event.
func SignalEvent(s signal.Signal) Event {
	return Event{
		Time:        s.Time,
		Type:        EventSignal,
		Description: fmt.Sprintf("%s %s %s", s.StrategyName, s.Kind, s.Pair),
		Data: map[string]any{
			"pair":          s.Pair,
			"timeframe":     s.Timeframe,
			"kind":          string(s.Kind),
			"side":          s.Kind.Side().String(),
			"tag":           s.Tag,
			"trigger_price": s.TriggerPrice,
			"prediction":    s.Prediction,
			"strategy":      s.StrategyName,
		},
	}
}

// RecordSignals journals signals in one transaction.
func (j *SQLite) RecordSignals(ctx context.Context, signals []signal.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, s := range signals {
		if err := insert(ctx, tx, SignalEvent(s)); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, err)
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}
