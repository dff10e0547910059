package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillswap_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillswap_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Swap lifecycle
	SwapTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_swap_transitions_total",
			Help: "Swap lifecycle operations by target status and outcome",
		},
		[]string{"to", "outcome"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_notifications_created_total",
			Help: "Notifications created by type",
		},
		[]string{"type"},
	)

	// Background jobs
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_jobs_processed_total",
			Help: "Background jobs processed by type and result (done, retry, dead_letter)",
		},
		[]string{"type", "result"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillswap_job_duration_seconds",
			Help:    "Handler duration of background jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSwapTransition counts a lifecycle operation; outcome is "ok" or the
// error kind.
func RecordSwapTransition(to, outcome string) {
	SwapTransitions.WithLabelValues(to, outcome).Inc()
}

func RecordNotification(typ string) {
	NotificationsCreated.WithLabelValues(typ).Inc()
}

func RecordJob(typ, result string, duration time.Duration) {
	JobsProcessed.WithLabelValues(typ, result).Inc()
	JobDuration.WithLabelValues(typ).Observe(duration.Seconds())
}
