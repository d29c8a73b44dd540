package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dosing engine metrics
	DosesTaken    prometheus.Counter
	MissedDoses   prometheus.Counter
	SweepRuns     prometheus.Counter
	SweepFailures prometheus.Counter
	SweepLatency  prometheus.Histogram

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New registers and returns the application metrics under the given prefix.
func New(prefix string) *Metrics {
	return &Metrics{
		DosesTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_doses_taken_total",
			Help: "Total number of fulfilled dose schedule entries",
		}),
		MissedDoses: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_missed_doses_total",
			Help: "Total number of schedule entries the sweep marked missed",
		}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_sweep_runs_total",
			Help: "Total number of reconciliation sweep runs",
		}),
		SweepFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_sweep_failures_total",
			Help: "Total number of schedule entries the sweep failed to resolve",
		}),
		SweepLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_sweep_duration_seconds",
			Help:    "Time spent per reconciliation sweep run",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_outbox_events_processed_total",
			Help: "Total number of processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_outbox_events_failed_total",
			Help: "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_outbox_processing_duration_seconds",
			Help:    "Time spent per outbox processing batch",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_outbox_retries_total",
			Help: "Number of outbox publish retries",
		}, []string{"event_type"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_database_operations_total",
			Help: "Database operations by name and outcome",
		}, []string{"operation", "status"}),
	}
}
