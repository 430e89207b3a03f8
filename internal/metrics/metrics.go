package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks terminal operation outcomes
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_operations_total",
			Help: "Total number of operations run through the retry executor",
		},
		[]string{"operation", "outcome"},
	)

	// AttemptsTotal tracks every invocation of a remote operation
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_attempts_total",
			Help: "Total number of attempts, including retries",
		},
		[]string{"operation"},
	)

	// RetriesTotal tracks scheduled retries per failure category
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_retries_total",
			Help: "Total number of retries scheduled",
		},
		[]string{"operation", "category"},
	)

	// FailuresTotal tracks classified failures
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_failures_total",
			Help: "Total number of classified failures",
		},
		[]string{"category", "severity", "action"},
	)

	// OperationLatency tracks total operation time including backoff
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rrol_operation_latency_seconds",
			Help:    "Operation latency in seconds, including retry delays",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// FallbacksTotal tracks domain fallbacks taken after terminal failures
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_fallbacks_total",
			Help: "Total number of fallback paths taken",
		},
		[]string{"operation", "outcome"},
	)

	// TelemetryQueueDepth tracks pending failure reports
	TelemetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rrol_telemetry_queue_depth",
			Help: "Number of failure reports waiting for delivery",
		},
	)

	// TelemetryDelivered tracks delivery outcomes
	TelemetryDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_telemetry_deliveries_total",
			Help: "Total number of failure report deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// TelemetryEvicted tracks reports dropped on queue overflow
	TelemetryEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rrol_telemetry_evicted_total",
			Help: "Total number of failure reports evicted on queue overflow",
		},
	)

	// Online reports the last connectivity reading (1 online, 0 offline)
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rrol_connectivity_online",
			Help: "Current connectivity state",
		},
	)

	// IntakeReportsTotal tracks reports received by the intake endpoint
	IntakeReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rrol_intake_reports_total",
			Help: "Total number of failure reports received",
		},
		[]string{"category", "severity", "status"},
	)

	// BackendLatency tracks single backend call latency
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rrol_backend_latency_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport", "operation"},
	)

	// DBConnectionPoolUsage tracks intake database pool usage in percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rrol_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
