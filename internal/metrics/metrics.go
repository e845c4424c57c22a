// Package metrics defines the Prometheus collectors for the gallery
// engine. All collectors are registered at init via promauto and are
// safe to use from any goroutine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_engine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_store_writes_total",
			Help: "Total number of engagement store writes",
		},
		[]string{"namespace", "status"},
	)

	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_engine_store_write_duration_seconds",
			Help:    "Engagement store write duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"namespace"},
	)

	StoreCorruptReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_store_corrupt_reads_total",
			Help: "Reads that found malformed persisted data and returned defaults",
		},
		[]string{"namespace"},
	)

	StoreEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_store_events_published_total",
			Help: "Change notifications published by topic",
		},
		[]string{"topic"},
	)

	StoreEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_store_events_dropped_total",
			Help: "Change notifications dropped because a subscriber was slow",
		},
		[]string{"topic"},
	)
)

// Viewer metrics
var (
	ViewerSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_engine_viewer_sessions_active",
			Help: "Number of open lightbox viewer sessions",
		},
	)

	ViewerWatchSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_engine_viewer_watch_seconds_total",
			Help: "Wall-clock watch seconds accrued across all sessions",
		},
	)

	ViewerAutoplayAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_engine_viewer_autoplay_advances_total",
			Help: "Recommendation countdown outcomes",
		},
		[]string{"outcome"}, // "auto", "cancelled", "immediate"
	)
)

// Auto-tag metrics
var (
	AutotagRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_engine_autotag_run_duration_seconds",
			Help:    "Duration of catalog-wide auto-tag passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	AutotagItemsRetagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_engine_autotag_items_retagged_total",
			Help: "Items recomputed because their cached deriver version was stale",
		},
	)

	AutotagItemsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_engine_autotag_items_skipped_total",
			Help: "Items skipped because their cached deriver version was current",
		},
	)
)

// Event feed metrics
var (
	EventClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_engine_event_clients_connected",
			Help: "Number of websocket event-feed clients",
		},
	)
)
