// Package metrics defines the Prometheus instrumentation for the voting
// pipeline. All metrics are registered at package load via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Producer metrics
var (
	VotesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_enqueued_total",
			Help: "Total vote events appended to the queue, by choice",
		},
		[]string{"choice"},
	)

	EnqueueFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_enqueue_failures_total",
			Help: "Total vote submissions rejected because the queue was unreachable",
		},
	)
)

// Worker metrics
var (
	WorkerVotesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_votes_processed_total",
			Help: "Total vote events successfully upserted into storage",
		},
	)

	WorkerMalformedPayloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_malformed_payloads_total",
			Help: "Total queue payloads discarded because they could not be decoded",
		},
	)

	WorkerReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_reconnects_total",
			Help: "Total mid-run reconnects, by target (queue/storage)",
		},
		[]string{"target"},
	)

	WorkerUpsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_upsert_duration_seconds",
			Help:    "Vote upsert duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Tally cache metrics
var (
	TallyRefreshFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_refresh_failures_total",
			Help: "Total aggregate refresh cycles that kept the previous snapshot due to a storage error",
		},
	)

	TallyRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tally_refresh_duration_seconds",
			Help:    "Aggregate count query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Broadcaster metrics
var (
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients",
			Help: "Number of currently connected live-update viewers",
		},
	)

	BroadcasterMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_messages_sent_total",
			Help: "Total tally snapshots pushed to viewers",
		},
	)

	BroadcasterConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_connections_rejected_total",
			Help: "Total stream connections rejected because the client limit was reached",
		},
	)
)
