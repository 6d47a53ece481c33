// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Statement consumption and processing throughput
// - Warehouse query performance (DuckDB)
// - Dead-letter queue depth and retry outcomes
// - Trigger-word alert volume
// - Cohort sync runs

var (
	// Consumer Metrics
	StatementsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_statements_received_total",
			Help: "Total number of statements pulled from the queue",
		},
	)

	StatementsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_statements_processed_total",
			Help: "Total number of statements successfully written and acked",
		},
	)

	StatementsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_statements_deduplicated_total",
			Help: "Total number of duplicate statements skipped by the idempotent writer",
		},
	)

	StatementsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursus_statements_failed_total",
			Help: "Total number of statements that failed processing",
		},
		[]string{"stage", "error_type"}, // stage: decode, normalize, write
	)

	ConsumerWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cursus_consumer_workers_busy",
			Help: "Current number of consumer workers processing a message",
		},
	)

	// Warehouse Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursus_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursus_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Dead-Letter Queue Metrics
	DLQPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_dlq_published_total",
			Help: "Total number of messages published to the dead-letter stream",
		},
	)

	DLQPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_dlq_publish_errors_total",
			Help: "Total number of dead-letter publish failures",
		},
	)

	DLQRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_dlq_retries_total",
			Help: "Total number of administrative retries of failed statements",
		},
	)

	DLQUnresolved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cursus_dlq_unresolved_entries",
			Help: "Current number of unresolved entries in the failure ledger",
		},
	)

	// Safety Alert Metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursus_safety_alerts_total",
			Help: "Total number of trigger-word alerts recorded",
		},
		[]string{"scope"}, // "live" or "historical"
	)

	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_safety_alerts_deduplicated_total",
			Help: "Total number of alert evaluations suppressed by the dedup index",
		},
	)

	AlertNotifyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursus_safety_notify_errors_total",
			Help: "Total number of failed alert notification deliveries",
		},
	)

	KeywordsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cursus_safety_keywords_active",
			Help: "Current number of configured trigger words",
		},
	)

	// Cohort Sync Metrics
	CohortSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursus_cohort_sync_runs_total",
			Help: "Total number of cohort sync runs",
		},
		[]string{"status"}, // "success" or "failure"
	)

	CohortSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cursus_cohort_sync_duration_seconds",
			Help:    "Duration of cohort sync runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CohortsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cursus_cohorts_tracked",
			Help: "Current number of cohorts in the registry",
		},
	)
)

// ObserveDBQuery records the duration and outcome of a warehouse query.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
