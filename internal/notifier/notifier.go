// Package notifier
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/mlsignal/internal/strategy/signal"
)

// Notifier interface for sending notifications (e.g., Telegram).
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }

// FormatSignal renders a signal as a one-line message.
func FormatSignal(s signal.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s @ %.8g", s.StrategyName, strings.ToUpper(string(s.Kind)), s.Pair, s.TriggerPrice)
	if s.Tag != "" {
		fmt.Fprintf(&b, " [%s]", s.Tag)
	}
	fmt.Fprintf(&b, " prediction=%+.4f tf=%s time=%s", s.Prediction, s.Timeframe, s.Time.UTC().Format("2006-01-02 15:04"))
	return b.String()
}
