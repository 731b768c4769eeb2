// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the catalog.
//
// # Description
//
// This package implements Prometheus metrics for monitoring field catalog
// operations. Metrics include:
//   - Merge counters and latency histograms (by context and status)
//   - Observation throughput (by context)
//   - Catalog entry churn (created, updated, marked optional)
//   - Search and suggest counters and latency histograms
//   - Watch feed subscriber and drop gauges
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "fieldscope"

// Subsystem for catalog metrics
const catalogSubsystem = "catalog"

// CatalogMetrics holds all Prometheus metrics for field catalog operations.
//
// # Description
//
// Provides counters and histograms for monitoring merge throughput, catalog
// churn, and query load. Initialize once at startup via InitMetrics().
//
// Context IDs appear as label values. Contexts are a small, hand-curated
// set, so the label cardinality stays bounded.
//
// # Fields
//
//   - MergesTotal: Counter of merge batches by context and status
//   - MergeDurationSeconds: Histogram of merge transaction latency
//   - ObservationsTotal: Counter of observations accepted per context
//   - EntryChangesTotal: Counter of catalog entry changes by kind
//   - SearchesTotal: Counter of search/suggest requests by mode and status
//   - SearchDurationSeconds: Histogram of search/suggest latency
//
// # Thread Safety
//
// All operations are thread-safe.
type CatalogMetrics struct {
	// MergesTotal counts merge batches by context and status.
	// Labels: context_id, status (success, error)
	MergesTotal *prometheus.CounterVec

	// MergeDurationSeconds measures end-to-end merge transaction latency.
	// Labels: status (success, error)
	MergeDurationSeconds *prometheus.HistogramVec

	// ObservationsTotal counts individual observations accepted into merges.
	// Labels: context_id
	ObservationsTotal *prometheus.CounterVec

	// EntryChangesTotal counts catalog entry mutations by kind.
	// Labels: context_id, change (created, updated, marked_optional)
	EntryChangesTotal *prometheus.CounterVec

	// SearchesTotal counts search and suggest requests.
	// Labels: mode (global, scoped, suggest), status (success, error)
	SearchesTotal *prometheus.CounterVec

	// SearchDurationSeconds measures search and suggest latency.
	// Labels: mode (global, scoped, suggest)
	SearchDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of CatalogMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *CatalogMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *CatalogMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *CatalogMetrics {
	DefaultMetrics = &CatalogMetrics{
		MergesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "merges_total",
				Help:      "Total number of merge batches by context and status",
			},
			[]string{"context_id", "status"},
		),

		MergeDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "merge_duration_seconds",
				Help:      "End-to-end merge transaction latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"status"},
		),

		ObservationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "observations_total",
				Help:      "Total observations accepted into merges per context",
			},
			[]string{"context_id"},
		),

		EntryChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "entry_changes_total",
				Help:      "Total catalog entry mutations by change kind",
			},
			[]string{"context_id", "change"},
		),

		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "searches_total",
				Help:      "Total search and suggest requests by mode and status",
			},
			[]string{"mode", "status"},
		),

		SearchDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "search_duration_seconds",
				Help:      "Search and suggest latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"mode"},
		),
	}

	return DefaultMetrics
}

// RegisterWatchFeed registers gauges for the live watch feed.
//
// # Description
//
// The watch hub lives in its own package and must not depend on metrics,
// so the feed is instrumented through closures instead of direct calls.
// Call once at startup after the hub is constructed.
//
// # Inputs
//
//   - subscribers: Returns the current subscriber count.
//   - dropped: Returns the cumulative count of dropped events.
//
// # Examples
//
//	observability.RegisterWatchFeed(
//	    func() float64 { return float64(hub.SubscriberCount()) },
//	    func() float64 { return float64(hub.Dropped()) },
//	)
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func RegisterWatchFeed(subscribers func() float64, dropped func() float64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: catalogSubsystem,
			Name:      "watch_subscribers",
			Help:      "Number of currently connected watch feed subscribers",
		},
		subscribers,
	)

	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: catalogSubsystem,
			Name:      "watch_dropped_events_total",
			Help:      "Total watch feed events dropped due to slow subscribers",
		},
		dropped,
	)
}

// =============================================================================
// Change Kinds
// =============================================================================

// ChangeKind labels the kind of catalog entry mutation for metrics.
type ChangeKind string

const (
	// ChangeCreated indicates a field was observed for the first time.
	ChangeCreated ChangeKind = "created"

	// ChangeUpdated indicates an existing entry's statistics were widened.
	ChangeUpdated ChangeKind = "updated"

	// ChangeMarkedOptional indicates absence cleanup dropped minOccurs to zero.
	ChangeMarkedOptional ChangeKind = "marked_optional"
)

// =============================================================================
// Search Modes
// =============================================================================

// SearchMode labels the query entry point for metrics.
type SearchMode string

const (
	// SearchModeGlobal is free-text search across every context.
	SearchModeGlobal SearchMode = "global"

	// SearchModeScoped is filtered search within one context.
	SearchModeScoped SearchMode = "scoped"

	// SearchModeSuggest is typeahead value completion.
	SearchModeSuggest SearchMode = "suggest"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordMerge records a completed merge batch.
//
// # Inputs
//
//   - contextID: The context the batch targeted.
//   - seconds: End-to-end merge latency in seconds.
//   - success: Whether the merge committed.
func (m *CatalogMetrics) RecordMerge(contextID string, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MergesTotal.WithLabelValues(contextID, status).Inc()
	m.MergeDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordObservations records observations accepted into a merge.
//
// # Inputs
//
//   - contextID: The context the observations targeted.
//   - count: Number of observations in the batch.
func (m *CatalogMetrics) RecordObservations(contextID string, count int) {
	m.ObservationsTotal.WithLabelValues(contextID).Add(float64(count))
}

// RecordEntryChanges records catalog entry mutations from one merge.
//
// # Inputs
//
//   - contextID: The context the entries belong to.
//   - created: Entries written for the first time.
//   - updated: Entries whose statistics were widened.
//   - markedOptional: Entries absence cleanup marked optional.
func (m *CatalogMetrics) RecordEntryChanges(contextID string, created, updated, markedOptional int) {
	if created > 0 {
		m.EntryChangesTotal.WithLabelValues(contextID, string(ChangeCreated)).Add(float64(created))
	}
	if updated > 0 {
		m.EntryChangesTotal.WithLabelValues(contextID, string(ChangeUpdated)).Add(float64(updated))
	}
	if markedOptional > 0 {
		m.EntryChangesTotal.WithLabelValues(contextID, string(ChangeMarkedOptional)).Add(float64(markedOptional))
	}
}

// RecordSearch records a completed search or suggest request.
//
// # Inputs
//
//   - mode: The query entry point.
//   - seconds: Request latency in seconds.
//   - success: Whether the request succeeded.
func (m *CatalogMetrics) RecordSearch(mode SearchMode, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SearchesTotal.WithLabelValues(string(mode), status).Inc()
	m.SearchDurationSeconds.WithLabelValues(string(mode)).Observe(seconds)
}
