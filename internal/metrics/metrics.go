// Package metrics provides Prometheus metrics for the thumbnail cache,
// generator, and searches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_thumbnail_cache_hits_total",
			Help: "Thumbnail cache hits by tier",
		},
		[]string{"tier"},
	)

	cacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelf_thumbnail_cache_misses_total",
			Help: "Thumbnail cache lookups that found nothing in either tier",
		},
	)

	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_thumbnail_cache_evictions_total",
			Help: "Thumbnail cache evictions by tier",
		},
		[]string{"tier"},
	)

	cacheMemoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelf_thumbnail_cache_memory_entries",
			Help: "Number of thumbnails held in memory",
		},
	)

	cacheDiskBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelf_thumbnail_cache_disk_bytes",
			Help: "Bytes used by the disk thumbnail cache after the last maintenance pass",
		},
	)

	cacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_thumbnail_cache_errors_total",
			Help: "Disk cache I/O failures by operation",
		},
		[]string{"op"},
	)

	// Generator metrics
	generatorJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_thumbnail_jobs_total",
			Help: "Thumbnail generation jobs by outcome",
		},
		[]string{"status"},
	)

	generatorJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shelf_thumbnail_job_duration_seconds",
			Help:    "Time spent generating one thumbnail",
			Buckets: prometheus.DefBuckets,
		},
	)

	generatorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shelf_thumbnail_queue_depth",
			Help: "Thumbnail jobs waiting for a worker",
		},
	)

	// Search metrics
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelf_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	searchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelf_search_results_total",
			Help: "Total entries returned by searches",
		},
		[]string{"type"},
	)

	// Watcher metrics
	watcherRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelf_watcher_refreshes_total",
			Help: "Directory refreshes triggered by filesystem changes",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheHit records a hit in the "memory" or "disk" tier.
func RecordCacheHit(tier string) {
	cacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a lookup that missed both tiers.
func RecordCacheMiss() {
	cacheMissesTotal.Inc()
}

// RecordCacheEviction records an eviction from the given tier.
func RecordCacheEviction(tier string, n int) {
	cacheEvictionsTotal.WithLabelValues(tier).Add(float64(n))
}

// SetCacheMemoryEntries sets the in-memory entry count.
func SetCacheMemoryEntries(n int) {
	cacheMemoryEntries.Set(float64(n))
}

// SetCacheDiskBytes sets the disk tier size.
func SetCacheDiskBytes(n int64) {
	cacheDiskBytes.Set(float64(n))
}

// RecordCacheError records a disk cache failure for op ("read", "write", ...).
func RecordCacheError(op string) {
	cacheErrorsTotal.WithLabelValues(op).Inc()
}

// RecordJob records a finished generation job.
func RecordJob(duration time.Duration, success bool) {
	generatorJobDuration.Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	generatorJobsTotal.WithLabelValues(status).Inc()
}

// RecordJobDropped records a job rejected because the queue was full.
func RecordJobDropped() {
	generatorJobsTotal.WithLabelValues("dropped").Inc()
}

// SetQueueDepth sets the number of queued generation jobs.
func SetQueueDepth(n int) {
	generatorQueueDepth.Set(float64(n))
}

// RecordSearch records a finished search of type "tags" or "advanced".
func RecordSearch(searchType string, results int, duration time.Duration) {
	searchDuration.WithLabelValues(searchType).Observe(duration.Seconds())
	searchResultsTotal.WithLabelValues(searchType).Add(float64(results))
}

// RecordRefresh records a watcher-triggered refresh.
func RecordRefresh() {
	watcherRefreshesTotal.Inc()
}
