package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	sweepRunsTotal          *prometheus.CounterVec
	groupChecksTotal        *prometheus.CounterVec
	portalLoginsTotal       *prometheus.CounterVec
	userSyncsTotal          *prometheus.CounterVec
	notificationsTotal      *prometheus.CounterVec
	sweepDurationSeconds    prometheus.Histogram
	notificationSubscribers prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		sweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of periodic sweep runs by outcome.",
		}, []string{"outcome"})

		groupChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_group_checks_total",
			Help: "Total number of context-group checks by outcome.",
		}, []string{"outcome"})

		portalLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Total number of portal login attempts by status.",
		}, []string{"status"})

		userSyncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "user_syncs_total",
			Help: "Total number of on-demand user syncs by outcome.",
		}, []string{"outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published by type.",
		}, []string{"type"})

		sweepDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Wall-clock duration of full sweep runs.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		})

		notificationSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_subscribers",
			Help: "Number of connected notification stream subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			sweepRunsTotal, groupChecksTotal, portalLoginsTotal,
			userSyncsTotal, notificationsTotal, sweepDurationSeconds,
			notificationSubscribers,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SweepRuns exposes the counter for sweep runs.
func SweepRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepRunsTotal
}

// GroupChecks exposes the counter for per-group check outcomes.
func GroupChecks() *prometheus.CounterVec {
	RegisterMetrics()
	return groupChecksTotal
}

// PortalLogins exposes the counter for portal login outcomes.
func PortalLogins() *prometheus.CounterVec {
	RegisterMetrics()
	return portalLoginsTotal
}

// UserSyncs exposes the counter for on-demand sync outcomes.
func UserSyncs() *prometheus.CounterVec {
	RegisterMetrics()
	return userSyncsTotal
}

// NotificationsPublished exposes the counter for published notifications.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SweepDuration exposes the sweep duration histogram.
func SweepDuration() prometheus.Histogram {
	RegisterMetrics()
	return sweepDurationSeconds
}

// StreamSubscribers exposes the notification subscriber gauge.
func StreamSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return notificationSubscribers
}
