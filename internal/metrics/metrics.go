// Package metrics provides Prometheus metrics for Vigil.
// It tracks the ingestion pipeline, lifecycle actions and housekeeping so
// operators can see dedup ratios, conflict rates and sweep behavior.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "vigil"
)

// Ingestion metrics track the receive pipeline.
var (
	// AlertsReceivedTotal counts alerts received by the engine, labeled by
	// how they were classified.
	AlertsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Total number of alerts received, by environment and outcome",
		},
		[]string{"environment", "outcome"}, // outcome: created, duplicate, correlated
	)

	// AlertsRejectedTotal counts alerts rejected before classification.
	AlertsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_rejected_total",
			Help:      "Total number of alerts rejected, by reason",
		},
		[]string{"reason"}, // reason: validation, policy, hook
	)

	// AlertsSuppressedTotal counts alerts accepted inside a blackout window.
	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts forced to blackout status",
		},
		[]string{"environment"},
	)

	// WriteConflictsTotal counts atomic writes lost to a concurrent writer
	// and retried by reclassification.
	WriteConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Total number of write conflicts that triggered reclassification",
		},
	)

	// ReceiveLatency measures time to fully process one inbound alert.
	ReceiveLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receive_latency_seconds",
			Help:      "Time to classify, transition and persist one alert in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Lifecycle metrics track operator actions and status transitions.
var (
	// ActionsTotal counts explicit actions applied to alerts.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of explicit alert actions, by action and result",
		},
		[]string{"action", "result"}, // result: ok, invalid, not_found, error
	)

	// StatusTransitionsTotal counts status changes committed by any write.
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of committed status transitions",
		},
		[]string{"from", "to"},
	)
)

// Housekeeping metrics track the periodic sweep.
var (
	// HousekeepingSweepsTotal counts completed housekeeping sweeps.
	HousekeepingSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_sweeps_total",
			Help:      "Total number of completed housekeeping sweeps",
		},
	)

	// HousekeepingExpiredTotal counts alerts expired by the sweep.
	HousekeepingExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_expired_total",
			Help:      "Total number of alerts auto-expired by housekeeping",
		},
	)

	// HousekeepingUnshelvedTotal counts shelves reverted on timeout.
	HousekeepingUnshelvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_unshelved_total",
			Help:      "Total number of shelved alerts reverted on timeout",
		},
	)

	// HousekeepingDeletedTotal counts records removed past retention.
	HousekeepingDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "housekeeping_deleted_total",
			Help:      "Total number of alerts deleted by retention, by class",
		},
		[]string{"class"}, // class: resolved, informational
	)

	// HousekeepingLatency measures time to complete one sweep.
	HousekeepingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "housekeeping_latency_seconds",
			Help:      "Time to complete one housekeeping sweep in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Storage metrics track persistence operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation"}, // operation: find, create, update, delete, sweep
	)
)
