// Package metrics provides Prometheus metrics for the docket service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes
const (
	OutcomeInserted         = "inserted"
	OutcomeUpdated          = "updated"
	OutcomeSkipped          = "skipped"
	OutcomeLogicalDuplicate = "logical_duplicate"
	OutcomeRejected         = "rejected"
)

// Batch statuses
const (
	BatchStatusCommitted  = "committed"
	BatchStatusRolledBack = "rolled_back"
	BatchStatusEmpty      = "empty"
)

var (
	// IngestionRecordsTotal counts records per kind by what happened to them
	IngestionRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docket",
			Subsystem: "ingestion",
			Name:      "records_total",
			Help:      "Total number of ingested records by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// IngestionBatchesTotal counts batches by final status
	IngestionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docket",
			Subsystem: "ingestion",
			Name:      "batches_total",
			Help:      "Total number of ingestion batches by kind and status",
		},
		[]string{"kind", "status"},
	)

	// IngestionBatchDuration tracks time from normalization to commit
	IngestionBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docket",
			Subsystem: "ingestion",
			Name:      "batch_duration_seconds",
			Help:      "Duration of ingestion batches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// DLQBatchesTotal tracks consumed batches parked on the dead letter stream
	DLQBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docket",
			Subsystem: "dlq",
			Name:      "batches_total",
			Help:      "Total number of batches sent to the dead letter stream",
		},
		[]string{"kind", "reason"},
	)

	// IngestionRetriesTotal counts consumed batches re-applied after a transient failure
	IngestionRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docket",
			Subsystem: "ingestion",
			Name:      "retries_total",
			Help:      "Total number of batch retries after a transient failure",
		},
		[]string{"kind"},
	)

	// ConsumerLag is the consumer group lag reported by the Kafka reader
	ConsumerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docket",
			Subsystem: "kafka",
			Name:      "consumer_lag",
			Help:      "Messages behind the end of the scraper batch topic",
		},
		[]string{"topic"},
	)

	// EventsPublishedTotal tracks admitted-record events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docket",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of admitted-record events published",
		},
		[]string{"kind", "status"},
	)
)

// RecordOutcome adds n records of kind with the given outcome. Zero counts are skipped.
func RecordOutcome(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	IngestionRecordsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}
