package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "controlplane",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// EntitlementCacheHits counts entitlement cache hits vs misses.
var EntitlementCacheHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "entitlement",
		Name:      "cache_result_total",
		Help:      "Entitlement cache lookups by result (hit, miss, unavailable).",
	},
	[]string{"result"},
)

// EntitlementEvalFailures counts fail-closed entitlement evaluation errors.
var EntitlementEvalFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "entitlement",
		Name:      "eval_failures_total",
		Help:      "Entitlement resolutions that failed closed.",
	},
)

// AuditWriteFailures counts audit writes that fell back to the secondary channel.
var AuditWriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "audit",
		Name:      "fallback_writes_total",
		Help:      "Audit entries written to the fallback channel after a primary write failure.",
	},
)

// TokenRefreshAttempts counts token refresh attempts by outcome.
var TokenRefreshAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "vault",
		Name:      "token_refresh_attempts_total",
		Help:      "Token refresh attempts by outcome (success, retryable, permanent, skipped).",
	},
	[]string{"outcome", "source_type"},
)

// All returns the service-specific collectors to register alongside the
// shared HTTP metric and Go/process collectors.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		EntitlementCacheHits,
		EntitlementEvalFailures,
		AuditWriteFailures,
		TokenRefreshAttempts,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTP metric, and any additional service-specific collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
