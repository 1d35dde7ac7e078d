// Package events announces records that a committed batch admitted for the first time.
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	ctxpkg "github.com/Ramsey-B/docket/pkg/context"
	"github.com/Ramsey-B/docket/pkg/metrics"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

const TypeRecordsAdmitted = "records.admitted"

// RecordsAdmitted is published once per committed batch that admitted or updated records
type RecordsAdmitted struct {
	Type       string    `json:"type"`
	BatchID    string    `json:"batch_id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source,omitempty"`
	Identities []string  `json:"identities"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	TraceID    string    `json:"trace_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Publisher interface {
	PublishRecordsAdmitted(ctx context.Context, evt *RecordsAdmitted) error
}

// Emitter publishes after commit. A publish failure is logged and counted but never
// returned, since the batch it describes is already durable.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter accepts a nil publisher, in which case nothing is sent.
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) Admitted(ctx context.Context, kind string, identities []string, inserted, updated int) {
	if e == nil || e.publisher == nil || inserted+updated == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Admitted")
	defer span.End()

	evt := &RecordsAdmitted{
		Type:       TypeRecordsAdmitted,
		BatchID:    ctxpkg.GetBatchID(ctx),
		Kind:       kind,
		Source:     ctxpkg.GetSource(ctx),
		Identities: identities,
		Inserted:   inserted,
		Updated:    updated,
		TraceID:    tracing.GetTraceID(ctx),
		Timestamp:  time.Now().UTC(),
	}

	if err := e.publisher.PublishRecordsAdmitted(ctx, evt); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(kind, "failed").Inc()
		e.logger.WithContext(ctx).WithError(err).WithFields(ctxpkg.LogFields(ctx)).Warn("Failed to publish admitted records event")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(kind, "published").Inc()
}
