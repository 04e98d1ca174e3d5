package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mlsignal_signals_total", Help: "Rows flagged with an entry or exit signal"},
		[]string{"pair", "signal"},
	)
	ConfirmDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mlsignal_confirm_decisions_total", Help: "Trade confirmation gate decisions"},
		[]string{"pair", "side", "decision"},
	)
	SignalConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mlsignal_signal_conflicts_total", Help: "Rows carrying both an entry and an exit flag"},
		[]string{"pair"},
	)
	AnalyzeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlsignal_analyze_duration_seconds",
			Help:    "Time spent running the analysis pipeline for one pair",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pair"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, ConfirmDecisions, SignalConflicts, AnalyzeDuration)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
