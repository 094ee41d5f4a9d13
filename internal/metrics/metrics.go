// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts request frames handed to the link, by operation
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p4calc_requests_total",
			Help: "Total number of P4calc requests transmitted",
		},
		[]string{"op"},
	)

	// ExchangesTotal counts finished exchanges by outcome
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p4calc_exchanges_total",
			Help: "Total number of P4calc exchanges by result",
		},
		[]string{"op", "result"},
	)

	// ExchangeLatencySeconds measures transmit-to-reply latency of successful exchanges
	ExchangeLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "p4calc_exchange_latency_seconds",
			Help:    "Latency from request transmit to reply decode in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16), // 50µs to ~1.6s
		},
		[]string{"op"},
	)

	// CorrelatorInflight tracks requests awaiting a reply in a correlator
	CorrelatorInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p4calc_correlator_inflight",
			Help: "Number of requests awaiting a correlated reply",
		},
	)

	// CorrelatorUnmatchedTotal counts replies whose seed matched no pending request
	CorrelatorUnmatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p4calc_correlator_unmatched_total",
			Help: "Total number of replies dropped for lack of a pending request",
		},
	)
)

// Exchange results used as the "result" label
const (
	ResultOK           = "ok"
	ResultSeedMismatch = "seed_mismatch"
	ResultTimeout      = "timeout"
	ResultNotP4calc    = "not_p4calc"
	ResultMalformed    = "malformed"
	ResultTransmit     = "transmit_error"
	ResultInvalid      = "invalid_request"
	ResultCanceled     = "canceled"
	ResultError        = "error"
)
