package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	SignalsTotal.WithLabelValues("BTC/USDT", "enter_long").Inc()
	ConfirmDecisions.WithLabelValues("BTC/USDT", "long", "allow").Inc()
	SignalConflicts.WithLabelValues("BTC/USDT").Inc()
	AnalyzeDuration.WithLabelValues("BTC/USDT").Observe(0.01)

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	found := make(map[string]bool)
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"mlsignal_signals_total",
		"mlsignal_confirm_decisions_total",
		"mlsignal_signal_conflicts_total",
		"mlsignal_analyze_duration_seconds",
	} {
		assert.True(t, found[name], "%s not registered", name)
	}
}
