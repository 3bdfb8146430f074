package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_detection_cache_lookups_total",
			Help: "Detection cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	FallbackInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_fallback_invocations_total",
			Help: "Fallback classifier invocations by outcome (replaced, empty, failed).",
		},
		[]string{"outcome"},
	)

	PrimaryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "psi_primary_classifier_failures_total",
			Help: "Primary classifier calls that returned an error.",
		},
	)

	NutritionLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_nutrition_lookups_total",
			Help: "Nutrition lookups by result (cache_hit, found, not_found).",
		},
		[]string{"result"},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_quota_rejections_total",
			Help: "Requests rejected before execution by feature and reason (limit, unavailable).",
		},
		[]string{"feature", "reason"},
	)

	UsageRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_usage_recorded_total",
			Help: "Successful usage ledger increments by feature.",
		},
		[]string{"feature"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "psi_stage_duration_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "psi_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psi_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions.",
		},
		[]string{"name", "from", "to"},
	)
)
