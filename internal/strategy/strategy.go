// Package strategy
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amirphl/mlsignal/internal/candle"
	"github.com/amirphl/mlsignal/internal/config"
	"github.com/amirphl/mlsignal/internal/dataprovider"
	"github.com/amirphl/mlsignal/internal/feature"
	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/label"
	"github.com/amirphl/mlsignal/internal/metrics"
	"github.com/amirphl/mlsignal/internal/model"
	"github.com/amirphl/mlsignal/internal/strategy/signal"
	"github.com/amirphl/mlsignal/internal/tfutils"
	"github.com/amirphl/mlsignal/internal/utils"
)

// ErrNotEnoughCandles is returned when fewer candles than the startup count
// are given to Analyze.
var ErrNotEnoughCandles = errors.New("strategy: not enough candles")

// Storage interface defines methods for retrieving candle data
type Storage interface {
	GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error)
}

// Strategy is the interface the host drives once per new candle.
type Strategy interface {
	Name() string
	Timeframe() string
	WarmupPeriod() int
	Analyze(ctx context.Context, candles []candle.Candle, meta frame.Metadata) (*frame.Frame, error)
	ConfirmTradeEntry(ctx context.Context, pair string, req OrderRequest) (bool, error)
	PerformanceMetrics() map[string]float64
}

// MLStrategy derives features, asks the model for a forward return
// prediction and turns it into entry and exit flags gated by trend, volume,
// RSI and Bollinger band conditions.
type MLStrategy struct {
	cfg         config.Strategy
	period      int
	labelPeriod int
	rules       Rules
	predictor   model.Predictor
	dp          *dataprovider.Provider
	log         zerolog.Logger

	mu      sync.Mutex
	stats   map[signal.Kind]int
	counted map[string]time.Time // newest row counted per pair and timeframe
	runs    int
	skipped int
	denied  int
	allowed int
}

var _ Strategy = (*MLStrategy)(nil)

// New builds the strategy from cfg. A nil predictor disables predictions and a
// nil provider gets a private one.
func New(cfg config.Config, predictor model.Predictor, dp *dataprovider.Provider) *MLStrategy {
	if predictor == nil {
		predictor = model.Disabled{}
	}
	if dp == nil {
		dp = dataprovider.New()
	}
	return &MLStrategy{
		cfg:         cfg.Strategy,
		period:      cfg.Period(),
		labelPeriod: cfg.LabelPeriod(),
		rules:       Rules{T: cfg.Strategy.Thresholds},
		predictor:   predictor,
		dp:          dp,
		log:         utils.Component("strategy"),
		stats:       make(map[signal.Kind]int),
		counted:     make(map[string]time.Time),
	}
}

func (s *MLStrategy) Name() string { return "MLSignal" }

func (s *MLStrategy) Timeframe() string { return s.cfg.Timeframe }

// WarmupPeriod returns the number of candles needed before the first usable row.
func (s *MLStrategy) WarmupPeriod() int { return s.cfg.StartupCandleCount }

// Period returns the indicator window.
func (s *MLStrategy) Period() int { return s.period }

// DataProvider returns the cache analyzed frames are stored in.
func (s *MLStrategy) DataProvider() *dataprovider.Provider { return s.dp }

// FeatureEngineering adds every model-input column.
func (s *MLStrategy) FeatureEngineering(f *frame.Frame, meta frame.Metadata) error {
	if err := feature.ExpandAll(f, s.period, meta); err != nil {
		return err
	}
	if err := feature.ExpandBasic(f, meta); err != nil {
		return err
	}
	return feature.Standard(f, meta)
}

// SetTargets adds the training target.
func (s *MLStrategy) SetTargets(f *frame.Frame, meta frame.Metadata) error {
	return label.SetTargets(f, s.labelPeriod, meta)
}

// PopulateIndicators runs the model and restores the columns the rules read.
// The predictor never sees the training label of f.
func (s *MLStrategy) PopulateIndicators(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error) {
	in := model.Input(f)
	out, err := s.predictor.Predict(ctx, in, meta)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", meta.Pair, err)
	}
	if err := model.Check(in, out); err != nil {
		return nil, fmt.Errorf("predict %s: %w", meta.Pair, err)
	}
	if err := feature.Refresh(out, s.period, meta); err != nil {
		return nil, err
	}
	return out, nil
}

// Prepare builds the feature and target frame without running the model.
func (s *MLStrategy) Prepare(candles []candle.Candle, meta frame.Metadata) (*frame.Frame, error) {
	sorted := make([]candle.Candle, len(candles))
	copy(sorted, candles)
	candle.SortByTime(sorted)
	if err := candle.ValidateAll(sorted); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", meta.Pair, err)
	}
	if len(sorted) < s.cfg.StartupCandleCount {
		return nil, fmt.Errorf("%w: %s has %d, need %d", ErrNotEnoughCandles, meta.Pair, len(sorted), s.cfg.StartupCandleCount)
	}
	if gaps := candle.FindGaps(sorted); len(gaps) > 0 {
		s.log.Warn().Str("pair", meta.Pair).Int("gaps", len(gaps)).
			Time("first_gap", sorted[gaps[0]].Timestamp).Msg("Candle series has gaps")
	}

	f := frame.FromCandles(sorted)
	if err := s.FeatureEngineering(f, meta); err != nil {
		return nil, err
	}
	if err := s.SetTargets(f, meta); err != nil {
		return nil, err
	}
	return f, nil
}

// Analyze runs the full pipeline for one pair and stores the result in the
// data provider. Candles are sorted by time first. When only new candles are
// processed and the newest candle was already analyzed, the cached frame is
// returned.
func (s *MLStrategy) Analyze(ctx context.Context, candles []candle.Candle, meta frame.Metadata) (*frame.Frame, error) {
	if meta.Timeframe == "" {
		meta.Timeframe = s.Timeframe()
	}
	start := time.Now()

	if cached, ok := s.cached(candles, meta); ok {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.log.Debug().Str("pair", meta.Pair).Msg("No new candle, reusing analysis")
		return cached, nil
	}

	f, err := s.Prepare(candles, meta)
	if err != nil {
		return nil, err
	}
	out, err := s.PopulateIndicators(ctx, f, meta)
	if err != nil {
		return nil, err
	}
	if err := s.PopulateEntryTrend(out, meta); err != nil {
		return nil, err
	}
	if err := s.PopulateExitTrend(out, meta); err != nil {
		return nil, err
	}

	// Rows at or before the last counted one were reported by an earlier run.
	key := strings.ToUpper(meta.Pair) + "|" + meta.Timeframe
	s.mu.Lock()
	since := s.counted[key]
	s.mu.Unlock()

	conflicted, err := conflicts(out)
	if err != nil {
		return nil, err
	}
	var newConflicts int
	for _, i := range conflicted {
		if out.Date(i).After(since) {
			newConflicts++
		}
	}
	if newConflicts > 0 {
		metrics.SignalConflicts.WithLabelValues(meta.Pair).Add(float64(newConflicts))
		s.log.Warn().Str("pair", meta.Pair).Int("rows", newConflicts).
			Time("last", out.Date(conflicted[len(conflicted)-1])).
			Msg("Rows carry both an entry and an exit signal")
	}

	s.dp.Store(meta.Pair, meta.Timeframe, out)

	signals, err := s.Signals(out, meta)
	if err != nil {
		return nil, err
	}
	var fresh []signal.Signal
	for _, sig := range signals {
		if sig.Time.After(since) {
			fresh = append(fresh, sig)
		}
	}
	s.mu.Lock()
	s.runs++
	for _, sig := range fresh {
		s.stats[sig.Kind]++
	}
	if out.Len() > 0 && out.Date(out.Len()-1).After(since) {
		s.counted[key] = out.Date(out.Len() - 1)
	}
	s.mu.Unlock()
	for _, sig := range fresh {
		metrics.SignalsTotal.WithLabelValues(meta.Pair, string(sig.Kind)).Inc()
	}
	metrics.AnalyzeDuration.WithLabelValues(meta.Pair).Observe(time.Since(start).Seconds())

	s.log.Info().Str("pair", meta.Pair).Str("timeframe", meta.Timeframe).
		Int("rows", out.Len()).Int("signals", len(signals)).Int("new_signals", len(fresh)).
		Dur("took", time.Since(start)).Msg("Analyzed")
	return out, nil
}

// AnalyzeRange loads candles from storage and analyzes them. The window is
// widened backwards by the startup count so the first requested candle has
// warmed-up indicators.
func (s *MLStrategy) AnalyzeRange(ctx context.Context, storage Storage, pair string, from, to time.Time) (*frame.Frame, error) {
	tf, err := tfutils.ParseTimeframe(s.Timeframe())
	if err != nil {
		return nil, err
	}
	candles, err := storage.GetCandles(ctx, pair, s.Timeframe(), "", from.Add(-time.Duration(s.cfg.StartupCandleCount)*tf), to)
	if err != nil {
		return nil, fmt.Errorf("load candles %s: %w", pair, err)
	}
	return s.Analyze(ctx, candles, frame.Metadata{Pair: pair, Timeframe: s.Timeframe()})
}

func (s *MLStrategy) cached(candles []candle.Candle, meta frame.Metadata) (*frame.Frame, bool) {
	if !s.cfg.ProcessOnlyNewCandles || len(candles) == 0 {
		return nil, false
	}
	prev, _, err := s.dp.GetAnalyzedDataFrame(meta.Pair, meta.Timeframe)
	if err != nil || prev.Len() != len(candles) {
		return nil, false
	}
	newest := candles[0].Timestamp
	for _, c := range candles[1:] {
		if c.Timestamp.After(newest) {
			newest = c.Timestamp
		}
	}
	if !prev.Date(prev.Len() - 1).Equal(newest.UTC()) {
		return nil, false
	}
	return prev, true
}

// Signals lists the flagged rows of an analyzed frame in time order.
func (s *MLStrategy) Signals(f *frame.Frame, meta frame.Metadata) ([]signal.Signal, error) {
	closes, err := f.Float(frame.Close)
	if err != nil {
		return nil, err
	}
	preds, err := f.Float(frame.Target)
	if err != nil {
		return nil, err
	}
	enterTags, err := f.String(frame.EnterTag)
	if err != nil {
		return nil, err
	}
	exitTags, err := f.String(frame.ExitTag)
	if err != nil {
		return nil, err
	}
	flags := make(map[signal.Kind][]int, len(signal.Kinds))
	for _, k := range signal.Kinds {
		if flags[k], err = f.Int(string(k)); err != nil {
			return nil, err
		}
	}

	var out []signal.Signal
	for i := 0; i < f.Len(); i++ {
		for _, k := range signal.Kinds {
			if flags[k][i] != 1 {
				continue
			}
			tag := exitTags[i]
			if k.IsEntry() {
				tag = enterTags[i]
			}
			out = append(out, signal.Signal{
				Time:         f.Date(i),
				Pair:         meta.Pair,
				Timeframe:    meta.Timeframe,
				Kind:         k,
				Tag:          tag,
				TriggerPrice: closes[i],
				Prediction:   preds[i],
				StrategyName: s.Name(),
			})
		}
	}
	return out, nil
}

// PerformanceMetrics returns counters of the analyses and gate decisions so far.
func (s *MLStrategy) PerformanceMetrics() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string]float64{
		"runs":      float64(s.runs),
		"skipped":   float64(s.skipped),
		"allowed":   float64(s.allowed),
		"denied":    float64(s.denied),
		"period":    float64(s.period),
		"startup":   float64(s.cfg.StartupCandleCount),
		"stoploss":  s.cfg.Stoploss,
		"can_short": boolFloat(s.cfg.CanShort),
	}
	for _, k := range signal.Kinds {
		m[string(k)] = float64(s.stats[k])
	}
	return m
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
