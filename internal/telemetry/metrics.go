/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notifycentral"

var (
	// TicksTotal counts evaluation passes by mode ("live" or "dry_run") and outcome.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Evaluation passes by mode and outcome.",
	}, []string{"mode", "outcome"})

	// TickDuration observes the wall time of one pass.
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one evaluation pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	// DefinitionsConsidered counts definitions seen per pass by activation state.
	DefinitionsConsidered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "definitions_considered_total",
		Help:      "Definitions evaluated, labelled by activation state.",
	}, []string{"state"})

	// DefinitionsSkipped counts suppressed definitions by reason.
	DefinitionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "definitions_skipped_total",
		Help:      "Definitions not fired, labelled by reason.",
	}, []string{"reason"})

	// TriggersTotal counts trigger write-backs by mode.
	TriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "triggers_total",
		Help:      "Definitions triggered (or reported in dry runs).",
	}, []string{"mode"})

	// WriteBackFailures counts failed trigger write-backs.
	WriteBackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "write_back_failures_total",
		Help:      "Trigger write-backs rejected by the store.",
	})

	// AdmissionWaitSeconds observes how long callers waited on the token bucket.
	AdmissionWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "admission_wait_seconds",
		Help:      "Time spent waiting for a store admission token.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// StoreRequestsTotal counts outbound store calls by operation and outcome.
	StoreRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_requests_total",
		Help:      "Outbound definition store requests.",
	}, []string{"backend", "operation", "outcome"})

	// DatabaseQueryDuration observes gorm statement latency for the SQL stores.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "database_query_duration_seconds",
		Help:      "Database statement latency.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database statements.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "database_errors_total",
		Help:      "Database statements that returned an error.",
	}, []string{"operation"})

	// LeaderElectionStatus is 1 while this instance holds the lease.
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "leader_election_status",
		Help:      "1 when this instance is the tick leader.",
	}, []string{"instance_id"})

	// LeaderElectionChanges counts leadership transitions.
	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leader_election_changes_total",
		Help:      "Leadership acquisitions and losses.",
	}, []string{"instance_id", "change"})

	// APIRequestsTotal counts ops API requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes ops API latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
