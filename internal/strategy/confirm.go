package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/metrics"
	"github.com/amirphl/mlsignal/internal/strategy/position"
)

var (
	// ErrIndicatorUndefined is returned by the confirmation gate when the last
	// analyzed row has no ADX or relative volume.
	ErrIndicatorUndefined = errors.New("strategy: indicator undefined in last analyzed row")
	// ErrUnknownSide is returned for a side other than long or short.
	ErrUnknownSide = errors.New("strategy: unknown trade side")
)

// OrderRequest describes the order the host is about to place. Only Side
// affects the confirmation decision.
type OrderRequest struct {
	OrderType   string
	Amount      float64
	Rate        float64
	TimeInForce string
	CurrentTime time.Time
	EntryTag    string
	Side        string
}

// ConfirmTradeEntry re-checks volume and trend strength on the latest analyzed
// row of pair before an entry is placed. It fails closed: any error comes with
// a false decision.
func (s *MLStrategy) ConfirmTradeEntry(ctx context.Context, pair string, req OrderRequest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	side, ok := position.ParseSide(req.Side)
	if !ok {
		s.record(pair, req.Side, false)
		return false, fmt.Errorf("%w: %q", ErrUnknownSide, req.Side)
	}

	last, err := s.dp.LastRow(pair, s.Timeframe())
	if err != nil {
		s.record(pair, side.String(), false)
		s.log.Warn().Err(err).Str("pair", pair).Str("side", side.String()).Msg("Trade denied, no analyzed data")
		return false, err
	}

	adx := last.Value(frame.ADX)
	relVolume := last.Value(frame.RelativeVolume)
	if frame.Undefined(adx) || frame.Undefined(relVolume) {
		s.record(pair, side.String(), false)
		return false, fmt.Errorf("%w: %s at %s", ErrIndicatorUndefined, pair, last.Date.Format(time.RFC3339))
	}

	allow := s.rules.Confirm(adx, relVolume)
	s.record(pair, side.String(), allow)
	s.log.Info().Str("pair", pair).Str("side", side.String()).Str("entry_tag", req.EntryTag).
		Float64("adx", adx).Float64("relative_volume", relVolume).Bool("allow", allow).
		Msg("Trade confirmation")
	return allow, nil
}

func (s *MLStrategy) record(pair, side string, allow bool) {
	decision := "deny"
	if allow {
		decision = "allow"
	}
	metrics.ConfirmDecisions.WithLabelValues(pair, side, decision).Inc()
	s.mu.Lock()
	if allow {
		s.allowed++
	} else {
		s.denied++
	}
	s.mu.Unlock()
}
