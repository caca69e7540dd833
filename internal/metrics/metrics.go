// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_jobs_enqueued_total",
		Help: "Analysis jobs accepted into a queue.",
	}, []string{"kind"})

	JobsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_jobs_deduplicated_total",
		Help: "Enqueue requests ignored because the target was already pending.",
	}, []string{"kind"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_jobs_processed_total",
		Help: "Analysis jobs that reached a terminal state.",
	}, []string{"kind", "status"}) // status: completed, failed

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealtrack_job_duration_seconds",
		Help:    "Duration of analysis job execution.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"kind"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mealtrack_queue_depth",
		Help: "Jobs waiting behind the running job.",
	}, []string{"kind"})

	OfflineResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_offline_responses_total",
		Help: "Responses served by the offline cache controller.",
	}, []string{"strategy", "outcome"}) // outcome: network, cache, placeholder, error

	OfflineRevalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_offline_revalidations_total",
		Help: "Background refreshes of cached assets.",
	}, []string{"status"}) // status: stored, skipped, failed

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_notifications_total",
		Help: "User-facing notifications emitted.",
	}, []string{"level"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealtrack_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mealtrack_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
