package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/amirphl/mlsignal/internal/candle"
	"github.com/amirphl/mlsignal/internal/config"
	"github.com/amirphl/mlsignal/internal/dataset"
	"github.com/amirphl/mlsignal/internal/db"
	"github.com/amirphl/mlsignal/internal/db/conf"
	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/journal"
	"github.com/amirphl/mlsignal/internal/metrics"
	"github.com/amirphl/mlsignal/internal/model"
	"github.com/amirphl/mlsignal/internal/notifier"
	"github.com/amirphl/mlsignal/internal/strategy"
	sig "github.com/amirphl/mlsignal/internal/strategy/signal"
	"github.com/amirphl/mlsignal/internal/tfutils"
	"github.com/amirphl/mlsignal/internal/utils"
)

// maxParallelPairs bounds the pairs analyzed at once.
const maxParallelPairs = 4

func main() {
	cfg := config.MustLoadConfig()
	logger := utils.InitLogger(utils.LogOptions{Level: cfg.Log.Level, File: cfg.Log.File, Console: cfg.Log.Console})
	logger.Info().Str("mode", cfg.Mode).Strs("pairs", cfg.Pairs).Str("timeframe", cfg.Strategy.Timeframe).
		Msg("Starting MLSignal")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := run(ctx, cfg, *logger); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("Done")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.Mode == config.ModeImport {
		pg, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		return runImport(ctx, cfg, pg, logger)
	}

	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	predictor, err := loadPredictor(cfg, logger)
	if err != nil {
		return err
	}
	strat := strategy.New(cfg, predictor, nil)

	switch cfg.Mode {
	case config.ModeAnalyze:
		return runAnalyze(ctx, cfg, strat, storage, newNotifier(cfg), logger)
	case config.ModeDataset:
		return runDataset(ctx, cfg, strat, storage, logger)
	case config.ModeConfirm:
		return runConfirm(ctx, cfg, strat, storage, logger)
	}
	return fmt.Errorf("unsupported mode: %s", cfg.Mode)
}

// openStorage loads the configured CSV files into memory, or connects to
// Postgres when no CSV path is set.
func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (db.Storage, func(), error) {
	if cfg.CandlesCSV != "" {
		mem := db.NewMemory()
		for _, pair := range cfg.Pairs {
			path := cfg.CandlesPath(pair)
			candles, err := candle.LoadCSV(path, pair, cfg.Strategy.Timeframe)
			if err != nil {
				return nil, nil, fmt.Errorf("load %s: %w", path, err)
			}
			if err := mem.SaveCandles(ctx, candles); err != nil {
				return nil, nil, fmt.Errorf("load %s: %w", path, err)
			}
			logger.Info().Str("pair", pair).Str("file", path).Int("candles", len(candles)).Msg("Loaded candles")
		}
		return mem, func() {}, nil
	}
	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { pg.Close() }, nil
}

// openPostgres connects to the configured database. With migrations enabled
// the database is created when missing and the schema is applied.
func openPostgres(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*db.Default, error) {
	if cfg.DBConnStr == "" {
		return nil, errors.New("no candle source: set -candles-csv or DB_CONN_STR")
	}
	if cfg.RunMigration {
		if err := createDatabase(ctx, cfg.DBConnStr, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	pg, err := db.Open(ctx, cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("Connected to Postgres/TimescaleDB")
	if cfg.RunMigration {
		if err := applySchema(ctx, pg.GetDB(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return pg, nil
}

// importSource tags candles loaded by import mode.
const importSource = "csv"

// runImport copies the configured CSV files into dst. The stored range of each
// file is replaced, so a re-import does not leave stale rows behind.
func runImport(ctx context.Context, cfg config.Config, dst db.Storage, logger zerolog.Logger) error {
	if cfg.CandlesCSV == "" {
		return errors.New("import mode needs -candles-csv")
	}
	tf, err := tfutils.ParseTimeframe(cfg.Strategy.Timeframe)
	if err != nil {
		return err
	}
	for _, pair := range cfg.Pairs {
		path := cfg.CandlesPath(pair)
		candles, err := candle.LoadCSV(path, pair, cfg.Strategy.Timeframe)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if len(candles) == 0 {
			logger.Warn().Str("pair", pair).Str("file", path).Msg("No candles to import")
			continue
		}
		candle.SortByTime(candles)
		for i := range candles {
			candles[i].Source = importSource
		}
		first, end := candles[0].Timestamp, candles[len(candles)-1].Timestamp.Add(tf)
		if err := dst.DeleteCandlesInRange(ctx, pair, cfg.Strategy.Timeframe, importSource, first, end); err != nil {
			return fmt.Errorf("import %s: %w", pair, err)
		}
		if err := dst.SaveCandles(ctx, candles); err != nil {
			return fmt.Errorf("import %s: %w", pair, err)
		}

		count, err := dst.GetCandleCount(ctx, pair, cfg.Strategy.Timeframe, first, end)
		if err != nil {
			return fmt.Errorf("import %s: %w", pair, err)
		}
		latest, err := dst.GetLatestCandle(ctx, pair, cfg.Strategy.Timeframe)
		if err != nil {
			return fmt.Errorf("import %s: %w", pair, err)
		}
		ev := logger.Info().Str("pair", pair).Str("file", path).Int("imported", len(candles)).Int("stored", count)
		if latest != nil {
			ev = ev.Time("latest", latest.Timestamp)
		}
		ev.Msg("Candles imported")
	}
	return nil
}

func loadPredictor(cfg config.Config, logger zerolog.Logger) (model.Predictor, error) {
	if cfg.Predictions == "" {
		logger.Warn().Msg("No predictions file configured, every row is marked do_predict=0")
		return model.Disabled{}, nil
	}
	p, err := model.LoadParquetPredictor(cfg.Predictions)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("file", cfg.Predictions).Int("predictions", p.Len()).Msg("Loaded predictions")
	return p, nil
}

// window returns the requested candle range. An unset end means now.
func window(cfg config.Config) (time.Time, time.Time) {
	to := cfg.To
	if to.IsZero() {
		to = time.Now().UTC()
	} else {
		to = to.AddDate(0, 0, 1)
	}
	return cfg.From, to
}

func metaFor(cfg config.Config, pair string) frame.Metadata {
	return frame.Metadata{Pair: pair, Timeframe: cfg.Strategy.Timeframe}
}

// forEachPair runs fn for every configured pair with bounded parallelism and
// stops at the first error.
func forEachPair(ctx context.Context, pairs []string, fn func(ctx context.Context, pair string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPairs)
	for _, pair := range pairs {
		g.Go(func() error { return fn(gctx, pair) })
	}
	return g.Wait()
}

func newNotifier(cfg config.Config) notifier.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notifier.Nop{}
	}
	return notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)
}

// notifyLatest sends the signals raised on the newest candle. Failures are
// logged only.
func notifyLatest(ctx context.Context, n notifier.Notifier, latest time.Time, signals []sig.Signal, logger zerolog.Logger) {
	for _, s := range signals {
		if !s.Time.Equal(latest) {
			continue
		}
		if err := n.Send(ctx, notifier.FormatSignal(s)); err != nil {
			logger.Error().Err(err).Str("pair", s.Pair).Str("signal", string(s.Kind)).Msg("Failed to send notification")
		}
	}
}

func runAnalyze(ctx context.Context, cfg config.Config, strat *strategy.MLStrategy, storage db.Storage, n notifier.Notifier, logger zerolog.Logger) error {
	var j *journal.SQLite
	if cfg.Journal != "" {
		var err error
		if j, err = journal.Open(ctx, cfg.Journal); err != nil {
			return err
		}
		defer j.Close()
	}

	from, to := window(cfg)
	var (
		mu  sync.Mutex
		all []sig.Signal
	)
	err := forEachPair(ctx, cfg.Pairs, func(ctx context.Context, pair string) error {
		out, err := strat.AnalyzeRange(ctx, storage, pair, from, to)
		if err != nil {
			return err
		}
		signals, err := strat.Signals(out, metaFor(cfg, pair))
		if err != nil {
			return err
		}
		if j != nil {
			if err := j.RecordSignals(ctx, signals); err != nil {
				return err
			}
		}
		if out.Len() > 0 {
			notifyLatest(ctx, n, out.Date(out.Len()-1), signals, logger)
		}
		mu.Lock()
		all = append(all, signals...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	printSummary(strat, all, logger)
	if cfg.SummaryCSV != "" {
		if err := saveSignals(cfg.SummaryCSV, all); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.SummaryCSV).Msg("Signals saved")
	}
	return nil
}

func runDataset(ctx context.Context, cfg config.Config, strat *strategy.MLStrategy, storage db.Storage, logger zerolog.Logger) error {
	if cfg.DatasetOut == "" {
		return errors.New("dataset mode needs -dataset-out")
	}
	from, to := window(cfg)
	var (
		mu      sync.Mutex
		records []dataset.TrainingRecord
	)
	err := forEachPair(ctx, cfg.Pairs, func(ctx context.Context, pair string) error {
		candles, err := storage.GetCandles(ctx, pair, cfg.Strategy.Timeframe, "", from, to)
		if err != nil {
			return fmt.Errorf("load candles %s: %w", pair, err)
		}
		meta := metaFor(cfg, pair)
		f, err := strat.Prepare(candles, meta)
		if err != nil {
			return err
		}
		recs, err := dataset.Build(f, meta)
		if err != nil {
			return err
		}
		logger.Info().Str("pair", pair).Int("candles", len(candles)).Int("rows", len(recs)).Msg("Training rows built")
		mu.Lock()
		records = append(records, recs...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	if err := dataset.Write(cfg.DatasetOut, records); err != nil {
		return err
	}
	logger.Info().Str("file", cfg.DatasetOut).Int("rows", len(records)).Msg("Dataset written")
	return nil
}

func runConfirm(ctx context.Context, cfg config.Config, strat *strategy.MLStrategy, storage db.Storage, logger zerolog.Logger) error {
	from, to := window(cfg)
	if _, err := strat.AnalyzeRange(ctx, storage, cfg.ConfirmPair, from, to); err != nil {
		return err
	}
	now := time.Now().UTC()
	allow, err := strat.ConfirmTradeEntry(ctx, cfg.ConfirmPair, strategy.OrderRequest{
		OrderType:   "limit",
		TimeInForce: "GTC",
		CurrentTime: now,
		Side:        cfg.ConfirmSide,
	})

	event := journal.Event{
		Time:        now,
		Type:        "confirm",
		Description: fmt.Sprintf("%s %s", cfg.ConfirmPair, cfg.ConfirmSide),
		Data:        map[string]any{"pair": cfg.ConfirmPair, "side": cfg.ConfirmSide, "allow": allow},
	}
	if err != nil {
		event.Data["error"] = err.Error()
	}
	if cfg.Journal != "" {
		j, jerr := journal.Open(ctx, cfg.Journal)
		if jerr != nil {
			return jerr
		}
		defer j.Close()
		if jerr := j.LogEvent(ctx, event); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return err
	}
	logger.Info().Str("pair", cfg.ConfirmPair).Str("side", cfg.ConfirmSide).Bool("allow", allow).Msg("Confirmation result")
	return nil
}

func printSummary(strat *strategy.MLStrategy, signals []sig.Signal, logger zerolog.Logger) {
	counts := make(map[string]map[sig.Kind]int)
	for _, s := range signals {
		if counts[s.Pair] == nil {
			counts[s.Pair] = make(map[sig.Kind]int)
		}
		counts[s.Pair][s.Kind]++
	}
	for pair, c := range counts {
		ev := logger.Info().Str("pair", pair)
		for _, k := range sig.Kinds {
			ev = ev.Int(string(k), c[k])
		}
		ev.Msg("Signal summary")
	}
	ev := logger.Info()
	for name, v := range strat.PerformanceMetrics() {
		ev = ev.Float64(name, v)
	}
	ev.Int("signals", len(signals)).Msg("Analysis complete")
}

// saveSignals writes signals ordered by time, then pair.
func saveSignals(filename string, signals []sig.Signal) error {
	sort.SliceStable(signals, func(i, j int) bool {
		if !signals[i].Time.Equal(signals[j].Time) {
			return signals[i].Time.Before(signals[j].Time)
		}
		return signals[i].Pair < signals[j].Pair
	})
	rows := [][]string{{"time", "pair", "timeframe", "kind", "tag", "trigger_price", "prediction", "strategy"}}
	for _, s := range signals {
		rows = append(rows, []string{
			s.Time.UTC().Format(time.RFC3339),
			s.Pair,
			s.Timeframe,
			string(s.Kind),
			s.Tag,
			strconv.FormatFloat(s.TriggerPrice, 'f', -1, 64),
			strconv.FormatFloat(s.Prediction, 'f', 6, 64),
			s.StrategyName,
		})
	}
	return saveCSV(filename, rows)
}

func saveCSV(filename string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// createDatabase creates the database named in connStr if it doesn't exist.
func createDatabase(ctx context.Context, connStr string, logger zerolog.Logger) error {
	logger.Info().Msg("Running database migrations...")

	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	base := *u
	base.Path = "/postgres"
	baseDB, err := sql.Open("postgres", base.String())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if !exists {
		logger.Info().Str("database", dbName).Msg("Creating database")
		if _, err := baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}
	return nil
}

// applySchema applies scripts/schema.sql to target.
func applySchema(ctx context.Context, target *sql.DB, logger zerolog.Logger) error {
	schemaPath, err := conf.FindSchema()
	if err != nil {
		return err
	}
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	var timescale bool
	if err := target.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'timescaledb')").Scan(&timescale); err != nil {
		return fmt.Errorf("failed to check for timescaledb: %w", err)
	}
	if timescale {
		if _, err := target.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE"); err != nil {
			logger.Warn().Err(err).Msg("TimescaleDB extension unavailable, continuing without hypertables")
			timescale = false
		}
	}
	for _, stmt := range conf.SplitStatements(string(schemaSQL), timescale) {
		if _, err := target.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", stmt, err)
		}
	}

	logger.Info().Msg("Database migrations completed successfully")
	return nil
}
