package sync3

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors the registration idiom used elsewhere in the ecosystem for
// per-subsystem Prometheus collectors: package-level vectors, registered
// exactly once regardless of how many Engines are constructed in-process.
var (
	pollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidingsync",
			Subsystem: "client",
			Name:      "poll_total",
			Help:      "Total number of sliding sync long-poll round trips, by outcome.",
		},
		[]string{"outcome"}, // success | http_error | transport_error | abort
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slidingsync",
			Subsystem: "client",
			Name:      "poll_duration_seconds",
			Help:      "Duration of sliding sync long-poll round trips.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	resendTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slidingsync",
			Subsystem: "client",
			Name:      "resend_total",
			Help:      "Total number of resend() calls, including those coalesced into one round trip.",
		},
	)
	txnAcknowledgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidingsync",
			Subsystem: "client",
			Name:      "txn_acknowledged_total",
			Help:      "Total number of ledger entries resolved or rejected, by outcome.",
		},
		[]string{"outcome"}, // resolved | superseded
	)
)

var registerMetricsOnce sync.Once

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(pollTotal, pollDuration, resendTotal, txnAcknowledgedTotal)
	})
}
