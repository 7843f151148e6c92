// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchCycles counts completed fetch cycles by task kind and result
	// (live, fallback, skipped, noop, error).
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_fetch_cycles_total",
		Help: "Fetch cycles executed, by task kind and result.",
	}, []string{"kind", "result"})

	// FallbackSnapshots counts fallback snapshot usage by outcome
	// (written, used, missing).
	FallbackSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_fallback_snapshots_total",
		Help: "Fallback snapshot writes and reads, by outcome.",
	}, []string{"outcome"})

	// HistoryCacheReads counts history cache lookups by result (hit, miss).
	HistoryCacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_history_cache_reads_total",
		Help: "History cache lookups, by result.",
	}, []string{"result"})

	// SchedulerTicks counts scheduler ticks by interval bucket.
	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_scheduler_ticks_total",
		Help: "Scheduler ticks, by interval bucket.",
	}, []string{"bucket"})

	// JobsEnqueued counts fetch jobs published to the queue by result
	// (published, failed).
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_fetch_jobs_enqueued_total",
		Help: "Fetch jobs published to the queue, by result.",
	}, []string{"result"})

	// UpstreamRequests counts upstream fetch attempts by result
	// (success, failure).
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "instatrack_upstream_requests_total",
		Help: "Upstream API fetch attempts, by result.",
	}, []string{"result"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
