// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendCallDuration records facade operation latency by provider and operation.
	BackendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simplesns_backend_call_duration_seconds",
		Help:    "Backend facade call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	// BackendCallErrors counts failed facade operations by error code.
	BackendCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplesns_backend_call_errors_total",
		Help: "Total number of failed backend facade calls",
	}, []string{"provider", "operation", "code"})

	// ImageDeleteFailures counts best-effort image deletions that failed.
	ImageDeleteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplesns_image_delete_failures_total",
		Help: "Total number of image objects that could not be deleted",
	}, []string{"store"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplesns_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ProfileCacheLookups counts profile cache hits and misses.
	ProfileCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplesns_profile_cache_lookups_total",
		Help: "Profile cache lookups by result",
	}, []string{"result"})
)

// ObserveBackendCall records one facade call. code is empty on success.
func ObserveBackendCall(provider, operation, code string, start time.Time) {
	BackendCallDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if code != "" {
		BackendCallErrors.WithLabelValues(provider, operation, code).Inc()
	}
}
