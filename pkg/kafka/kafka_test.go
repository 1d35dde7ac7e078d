package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxpkg "github.com/Ramsey-B/docket/pkg/context"
	"github.com/Ramsey-B/docket/pkg/events"
	"github.com/Ramsey-B/docket/pkg/models"
	"github.com/Ramsey-B/docket/pkg/redis"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeIngester fails with errs in order, then with err on every later call.
type fakeIngester struct {
	batches  []models.Batch
	sources  []string
	batchIDs []string
	errs     []error
	err      error
}

func (f *fakeIngester) Ingest(ctx context.Context, batch models.Batch) (any, error) {
	f.batches = append(f.batches, batch)
	f.sources = append(f.sources, ctxpkg.GetSource(ctx))
	f.batchIDs = append(f.batchIDs, ctxpkg.GetBatchID(ctx))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return nil, f.err
}

var fastRetry = RetryPolicy{MaxAttempts: 3, BackoffUnit: time.Millisecond}

type fakeDLQ struct {
	entries []*redis.DLQEntry
}

func (f *fakeDLQ) Add(_ context.Context, entry *redis.DLQEntry) (string, error) {
	f.entries = append(f.entries, entry)
	return "1-0", nil
}

func TestHeaders_RoundTrip(t *testing.T) {
	mh := MessageHeaders{RecordKind: "dispatch", Source: "cad-scraper", TraceParent: "00-abc-def-01"}

	headers := mh.ToKafkaHeaders()
	assert.Len(t, headers, 3)
	assert.Equal(t, mh, ExtractHeaders(headers))
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Snappy, compressionCodec("SNAPPY"))
	assert.Equal(t, kafka.Zstd, compressionCodec("zstd"))
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
}

func TestNewConsumer_RequiresSettings(t *testing.T) {
	cfg := DefaultConsumerConfig()
	cfg.GroupID = ""
	_, err := NewConsumer(cfg, testLogger())
	assert.EqualError(t, err, "group ID is required")

	cfg = DefaultConsumerConfig()
	cfg.Brokers = nil
	_, err = NewConsumer(cfg, testLogger())
	assert.EqualError(t, err, "at least one broker is required")
}

func TestBatchHandler_IngestsByKindHeader(t *testing.T) {
	ingester := &fakeIngester{}
	dlq := &fakeDLQ{}
	handler := NewBatchHandler(ingester, dlq, testLogger())

	err := handler.Handle(context.Background(), &ReceivedMessage{
		Value:   []byte(`{"calls":[{"id":"C1"},{"id":"C2"}]}`),
		Headers: MessageHeaders{RecordKind: "Dispatch"},
	})
	require.NoError(t, err)

	require.Len(t, ingester.batches, 1)
	assert.Equal(t, models.KindDispatch, ingester.batches[0].Kind)
	assert.Len(t, ingester.batches[0].Dispatch, 2)
	assert.Equal(t, "kafka", ingester.sources[0])
	assert.Empty(t, dlq.entries)
}

func TestBatchHandler_DeadLetters(t *testing.T) {
	tests := []struct {
		name       string
		msg        *ReceivedMessage
		ingestErr  error
		wantReason string
		wantStatus int
	}{
		{
			name:       "missing kind",
			msg:        &ReceivedMessage{Value: []byte(`[]`)},
			wantReason: redis.ReasonNoKind,
		},
		{
			name:       "malformed body",
			msg:        &ReceivedMessage{Value: []byte(`{"inmates":`), Headers: MessageHeaders{RecordKind: "roster"}},
			wantReason: redis.ReasonDecode,
		},
		{
			name:       "ingest failure",
			msg:        &ReceivedMessage{Offset: 9, Value: []byte(`[{"id":"A1"}]`), Headers: MessageHeaders{RecordKind: "bulletin", Source: "bulletin-scraper"}},
			ingestErr:  httperror.NewHTTPError(http.StatusInternalServerError, "failed to ingest bulletin batch").AddMetaValue("batch_id", "b-1"),
			wantReason: redis.ReasonIngest,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dlq := &fakeDLQ{}
			handler := NewBatchHandler(&fakeIngester{err: tt.ingestErr}, dlq, testLogger()).WithRetry(fastRetry)

			err := handler.Handle(context.Background(), tt.msg)
			require.Error(t, err)

			require.Len(t, dlq.entries, 1)
			entry := dlq.entries[0]
			assert.Equal(t, tt.wantReason, entry.Reason)
			assert.Equal(t, string(tt.msg.Value), entry.Payload)
			assert.Equal(t, tt.wantStatus, entry.StatusCode)
			if tt.ingestErr != nil {
				assert.Equal(t, "b-1", entry.BatchID)
				assert.Equal(t, "bulletin-scraper", entry.Source)
				assert.Equal(t, int64(9), entry.Offset)
			}
		})
	}
}

func TestBatchHandler_RetriesTransientFailure(t *testing.T) {
	ingester := &fakeIngester{errs: []error{
		httperror.NewHTTPError(http.StatusServiceUnavailable, "failed to ingest dispatch batch"),
	}}
	dlq := &fakeDLQ{}
	handler := NewBatchHandler(ingester, dlq, testLogger()).WithRetry(fastRetry)

	err := handler.Handle(context.Background(), &ReceivedMessage{
		Value:   []byte(`{"calls":[{"id":"C1"}]}`),
		Headers: MessageHeaders{RecordKind: "dispatch"},
	})
	require.NoError(t, err)

	assert.Len(t, ingester.batches, 2)
	assert.Empty(t, dlq.entries)
	require.Len(t, ingester.batchIDs, 2)
	assert.NotEmpty(t, ingester.batchIDs[0])
	assert.Equal(t, ingester.batchIDs[0], ingester.batchIDs[1], "retries keep the batch id")
}

func TestBatchHandler_DeadLettersAfterRetriesExhausted(t *testing.T) {
	ingester := &fakeIngester{err: &pq.Error{Code: "08006"}}
	dlq := &fakeDLQ{}
	handler := NewBatchHandler(ingester, dlq, testLogger()).WithRetry(fastRetry)

	err := handler.Handle(context.Background(), &ReceivedMessage{
		Value:   []byte(`[{"offenderNumber":"100"}]`),
		Headers: MessageHeaders{RecordKind: "offender_summary", BatchID: "b-7"},
	})
	require.Error(t, err)

	assert.Len(t, ingester.batches, fastRetry.MaxAttempts)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, redis.ReasonIngest, dlq.entries[0].Reason)
	assert.Equal(t, "b-7", dlq.entries[0].BatchID)
}

func TestBatchHandler_DoesNotRetryPermanentFailure(t *testing.T) {
	ingester := &fakeIngester{err: httperror.NewHTTPError(http.StatusInternalServerError, "duplicate key")}
	dlq := &fakeDLQ{}
	handler := NewBatchHandler(ingester, dlq, testLogger()).WithRetry(fastRetry)

	err := handler.Handle(context.Background(), &ReceivedMessage{
		Value:   []byte(`{"calls":[{"id":"C1"}]}`),
		Headers: MessageHeaders{RecordKind: "dispatch"},
	})
	require.Error(t, err)

	assert.Len(t, ingester.batches, 1)
	assert.Len(t, dlq.entries, 1)
}

func TestBatchHandler_WithoutDLQReturnsError(t *testing.T) {
	handler := NewBatchHandler(&fakeIngester{err: errors.New("boom")}, nil, testLogger()).WithRetry(fastRetry)

	err := handler.Handle(context.Background(), &ReceivedMessage{Value: []byte(`[]`), Headers: MessageHeaders{RecordKind: "offender_summary"}})
	assert.ErrorContains(t, err, "boom")
}

func TestEventMessage(t *testing.T) {
	evt := &events.RecordsAdmitted{
		Type:       events.TypeRecordsAdmitted,
		BatchID:    "b-7",
		Kind:       "roster",
		Identities: []string{"B1"},
		Inserted:   1,
	}

	msg, err := eventMessage(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, []byte("roster"), msg.Key)
	assert.Contains(t, msg.Headers, kafka.Header{Key: HeaderEventType, Value: []byte(events.TypeRecordsAdmitted)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: HeaderBatchID, Value: []byte("b-7")})

	var decoded events.RecordsAdmitted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, []string{"B1"}, decoded.Identities)
}
