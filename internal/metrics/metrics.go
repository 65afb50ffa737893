// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Package metrics exposes Prometheus collectors for the affinity service:
// database query performance, HTTP endpoint throughput, signal ingestion
// outcomes, selection behaviour, and circuit breaker state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	DBConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_db_conflict_retries_total",
			Help: "Total number of transaction-conflict retries on atomic updates",
		},
	)

	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Signal pipeline metrics
	SignalsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_signals_published_total",
			Help: "Total number of behavioural signal events published to the bus",
		},
		[]string{"kind"},
	)

	SignalsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_signals_processed_total",
			Help: "Total number of signal events consumed, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: applied, dropped, failed
	)

	ReinforcementsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_reinforcements_total",
			Help: "Total number of strength reinforcements applied to the store",
		},
	)

	// Selection metrics
	SelectionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_selection_requests_total",
			Help: "Total number of related-project selection requests",
		},
		[]string{"outcome"}, // outcome: ok, degraded
	)

	SelectionResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affinity_selection_result_size",
			Help:    "Number of related projects returned per selection",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)
)

// ObserveDBQuery records one database query with its duration and outcome.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveAPIRequest records one HTTP request.
func ObserveAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
