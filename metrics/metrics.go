// Package metrics provides Prometheus metrics for the watch reward service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completion results.
const (
	ResultCredited       = "credited"
	ResultAlreadyWatched = "already_watched"
	ResultNotFound       = "not_found"
	ResultError          = "error"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

// WatchCompletions counts completeWatch calls by result.
var WatchCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "watch",
	Name:      "completions_total",
	Help:      "Watch completions by result.",
}, []string{"result"})

// PointsCredited counts durable points credited.
var PointsCredited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watch",
	Name:      "points_credited_total",
	Help:      "Total points credited by the ledger.",
})

// CompletionLatency tracks completeWatch duration in seconds.
var CompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "watch",
	Name:      "completion_latency_seconds",
	Help:      "completeWatch duration in seconds.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Catalog ────────────────────────────────────────────────────────────────

// VideosPublished counts videos moved to published by the scheduler.
var VideosPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "watch",
	Name:      "videos_published_total",
	Help:      "Scheduled videos published.",
})

// CatalogSyncUpserts counts videos mirrored from the catalog service.
var CatalogSyncUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "watch",
	Name:      "catalog_sync_upserts_total",
	Help:      "Videos upserted by the catalog sync worker.",
}, []string{"status"})

// ─── Streams ────────────────────────────────────────────────────────────────

// BalanceStreams is the number of open balance SSE streams.
var BalanceStreams = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "watch",
	Name:      "balance_streams_active",
	Help:      "Open balance event streams.",
})
