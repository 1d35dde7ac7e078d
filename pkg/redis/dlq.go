package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/docket/pkg/metrics"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

const (
	DefaultDLQStream = "docket:dlq"

	// DLQMaxLen caps the stream; the oldest entries are trimmed
	DLQMaxLen = 10000
)

// Reasons a consumed batch is dead-lettered
const (
	ReasonDecode = "decode_failed"
	ReasonIngest = "ingest_failed"
	ReasonNoKind = "missing_record_kind"
)

// DeadLetterQueue keeps Kafka batches that could not be applied, so they can be replayed
// with `docket ingest`.
type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

// DLQEntry is one dead-lettered batch
type DLQEntry struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id,omitempty"`
	Kind         string    `json:"kind"`
	Source       string    `json:"source,omitempty"`
	Topic        string    `json:"topic"`
	Partition    int       `json:"partition"`
	Offset       int64     `json:"offset"`
	Payload      string    `json:"payload"`
	Reason       string    `json:"reason"`
	ErrorMessage string    `json:"error_message"`
	StatusCode   int       `json:"status_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// streamValues are the flat fields stored next to the JSON entry for XRANGE filtering
func (e *DLQEntry) streamValues() (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}
	return map[string]any{
		"data":   string(data),
		"kind":   e.Kind,
		"reason": e.Reason,
	}, nil
}

func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Add")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	values, err := entry.streamValues()
	if err != nil {
		return "", err
	}

	messageID, err := d.client.Redis().XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to add batch to DLQ")
		return "", fmt.Errorf("failed to add to DLQ: %w", err)
	}

	metrics.DLQBatchesTotal.WithLabelValues(entry.Kind, entry.Reason).Inc()
	d.logger.WithContext(ctx).Infof("Added batch to DLQ: id=%s kind=%s reason=%s", entry.ID, entry.Kind, entry.Reason)
	return messageID, nil
}

// List returns the newest entries first
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.Redis().XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	return d.client.Redis().XLen(ctx, d.streamName).Result()
}
