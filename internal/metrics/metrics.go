// Package metrics provides Prometheus instrumentation for the Duet pairing
// service: gauges for live queue/pair/connection counts, counters for
// pairing lifecycle events, and a histogram for match wait time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// QueueSize tracks the current number of users waiting for a match.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_queue_size",
		Help: "Current number of users in the waiting queue",
	})

	// ActivePairs tracks the current number of live pairings.
	ActivePairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_active_pairs",
		Help: "Current number of active chat pairings",
	})

	// MatchesTotal counts pairings by origin: "queue" for a normal match,
	// "undo" for a restored pairing after an undone skip.
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_matches_total",
		Help: "Total number of pairings created",
	}, []string{"origin"})

	// SkipsTotal counts skip operations.
	SkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_skips_total",
		Help: "Total number of partner skips",
	})

	// UndosTotal counts undo attempts by result: "ok", "expired", "busy".
	UndosTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_undos_total",
		Help: "Total number of skip-undo attempts",
	}, []string{"result"})

	// MessagesForwarded counts messages relayed between partners.
	MessagesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_messages_forwarded_total",
		Help: "Total number of messages forwarded between partners",
	})

	// ReportsTotal counts accepted (non-duplicate) abuse reports.
	ReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_reports_total",
		Help: "Total number of accepted abuse reports",
	})

	// BansTotal counts bans applied by the report threshold policy.
	BansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duet_bans_total",
		Help: "Total number of bans applied",
	})

	// MatchWaitSeconds records how long a user waited in the queue before
	// being matched.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duet_match_wait_seconds",
		Help:    "Time spent in the waiting queue before a match",
		Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		QueueSize,
		ActivePairs,
		MatchesTotal,
		SkipsTotal,
		UndosTotal,
		MessagesForwarded,
		ReportsTotal,
		BansTotal,
		MatchWaitSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
