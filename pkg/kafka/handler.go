package kafka

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	ctxpkg "github.com/Ramsey-B/docket/pkg/context"
	"github.com/Ramsey-B/docket/pkg/database"
	"github.com/Ramsey-B/docket/pkg/metrics"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/redis"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

// Ingester applies one decoded batch
type Ingester interface {
	Ingest(ctx context.Context, batch models.Batch) (any, error)
}

// DeadLetterSink parks a batch that could not be applied
type DeadLetterSink interface {
	Add(ctx context.Context, entry *redis.DLQEntry) (string, error)
}

// RetryPolicy bounds how often a batch failing on a transient error is re-applied
// before it is dead-lettered. Waits grow as fibonacci multiples of BackoffUnit.
type RetryPolicy struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BackoffUnit: time.Second}
}

// BatchHandler turns scraper batch messages into ingestion calls
type BatchHandler struct {
	ingester Ingester
	dlq      DeadLetterSink
	retry    RetryPolicy
	logger   ectologger.Logger
}

// NewBatchHandler accepts a nil dlq; failed batches are then only logged.
func NewBatchHandler(ingester Ingester, dlq DeadLetterSink, logger ectologger.Logger) *BatchHandler {
	return &BatchHandler{
		ingester: ingester,
		dlq:      dlq,
		retry:    DefaultRetryPolicy(),
		logger:   logger,
	}
}

func (h *BatchHandler) WithRetry(policy RetryPolicy) *BatchHandler {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	h.retry = policy
	return h
}

func (h *BatchHandler) Handle(ctx context.Context, msg *ReceivedMessage) error {
	if msg.Headers.TraceParent != "" {
		ctx = tracing.WithTraceParent(ctx, msg.Headers.TraceParent)
	}
	ctx, span := tracing.StartSpan(ctx, "kafka.BatchHandler.Handle")
	defer span.End()

	source := msg.Headers.Source
	if source == "" {
		source = "kafka"
	}
	ctx = ctxpkg.SetSource(ctx, source)
	batchID := msg.Headers.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}
	ctx = ctxpkg.SetBatchID(ctx, batchID)

	kind, err := models.ParseRecordKind(msg.Headers.RecordKind)
	if err != nil {
		return h.deadLetter(ctx, msg, msg.Headers.RecordKind, redis.ReasonNoKind, err)
	}

	batch, err := models.DecodeBatch(kind, msg.Value)
	if err != nil {
		return h.deadLetter(ctx, msg, kind.String(), redis.ReasonDecode, err)
	}

	if err := h.ingest(ctx, batch); err != nil {
		return h.deadLetter(ctx, msg, kind.String(), redis.ReasonIngest, err)
	}

	h.logger.WithContext(ctx).WithFields(ctxpkg.LogFields(ctx)).Debugf("Applied %s batch from offset %d", kind, msg.Offset)
	return nil
}

// ingest applies the batch, re-applying it while the failure is transient.
// Every attempt is its own transaction, so a retry starts from a clean slate.
func (h *BatchHandler) ingest(ctx context.Context, batch models.Batch) error {
	a, b := 1, 1
	for attempt := 1; ; attempt++ {
		_, err := h.ingester.Ingest(ctx, batch)
		if err == nil || !isTransient(err) || attempt >= h.retry.MaxAttempts {
			return err
		}

		wait := time.Duration(a) * h.retry.BackoffUnit
		metrics.IngestionRetriesTotal.WithLabelValues(batch.Kind.String()).Inc()
		h.logger.WithContext(ctx).WithError(err).WithFields(ctxpkg.LogFields(ctx)).
			Warnf("Transient failure applying %s batch, retrying in %s (attempt %d/%d)", batch.Kind, wait, attempt, h.retry.MaxAttempts)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		a, b = b, a+b
	}
}

// isTransient reports failures a later attempt can succeed on: 503 from the
// ingestion service or a connection/timeout class database error.
func isTransient(err error) bool {
	if httperror.IsHTTPError(err) {
		return httperror.GetStatusCode(err) == http.StatusServiceUnavailable
	}
	return database.Classify(err) == database.ErrorClassTransient
}

func (h *BatchHandler) deadLetter(ctx context.Context, msg *ReceivedMessage, kind, reason string, cause error) error {
	entry := &redis.DLQEntry{
		BatchID:      ctxpkg.GetBatchID(ctx),
		Kind:         kind,
		Source:       ctxpkg.GetSource(ctx),
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		Payload:      string(msg.Value),
		Reason:       reason,
		ErrorMessage: cause.Error(),
	}
	if httperror.IsHTTPError(cause) {
		entry.StatusCode = httperror.GetStatusCode(cause)
		if batchID, ok := httperror.ToHTTPError(cause).Meta["batch_id"].(string); ok {
			entry.BatchID = batchID
		}
	}

	log := h.logger.WithContext(ctx).WithError(cause).WithFields(map[string]any{
		"kind":      kind,
		"reason":    reason,
		"offset":    msg.Offset,
		"partition": msg.Partition,
	})

	if h.dlq == nil {
		log.Error("Dropping failed batch, no dead letter queue configured")
		return fmt.Errorf("%s: %w", reason, cause)
	}

	if _, err := h.dlq.Add(ctx, entry); err != nil {
		log.WithField("dlq_error", err.Error()).Error("Failed to dead-letter batch")
		return fmt.Errorf("%s: %w", reason, cause)
	}

	log.Warn("Batch sent to dead letter queue")
	return fmt.Errorf("%s: %w", reason, cause)
}
