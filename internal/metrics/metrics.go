// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

// Package metrics exposes Prometheus instrumentation for the curation
// engine: catalog API traffic, deck refills and enumerations, presence
// flushes, and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog client metrics
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of upstream catalog API requests",
		},
		[]string{"operation", "status"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Upstream catalog request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Deck engine metrics
	DeckRefillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_refills_total",
			Help: "Total number of source deck refill attempts",
		},
		[]string{"outcome"}, // "filled", "full_enough", "in_flight", "failed"
	)

	DeckRefillDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deck_refill_duration_seconds",
			Help:    "Source deck refill duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	DeckItemsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deck_items_added_total",
			Help: "Total number of items written to source decks",
		},
	)

	DeckEnumerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deck_enumerations_total",
			Help: "Total number of destination deck enumeration attempts",
		},
		[]string{"outcome"}, // "enumerated", "in_flight", "failed"
	)

	DeckEnumerationPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deck_enumeration_pages",
			Help:    "Pages fetched per destination deck enumeration",
			Buckets: []float64{1, 2, 3, 5, 8, 11},
		},
	)

	// Presence controller metrics
	PresenceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_events_total",
			Help: "Total number of presence transitions observed",
		},
		[]string{"transition"}, // "online", "offline"
	)

	PresenceFlushSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_flush_size",
			Help:    "Users removed per debounced presence flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 500},
		},
	)

	// Admin token cache metrics
	AdminTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_token_refreshes_total",
			Help: "Total number of shared admin token refreshes",
		},
		[]string{"outcome"}, // "refreshed", "cached", "failed"
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through the circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)
)
