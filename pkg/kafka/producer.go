package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/docket/pkg/events"
	"github.com/Ramsey-B/docket/pkg/tracing"
)

// Producer publishes records-admitted events
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodec(cfg.Compression),
		// Lets a first publish succeed in dev before the topic exists.
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// eventMessage keys by kind so events of one kind stay ordered on one partition
func eventMessage(ctx context.Context, evt *events.RecordsAdmitted) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	mh := MessageHeaders{
		RecordKind:  evt.Kind,
		Source:      evt.Source,
		BatchID:     evt.BatchID,
		TraceParent: tracing.GetTraceParent(ctx),
	}
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte(evt.Type)}}
	for _, h := range mh.ToKafkaHeaders() {
		headers = append(headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	return kafka.Message{
		Key:     []byte(evt.Kind),
		Value:   data,
		Headers: headers,
	}, nil
}

func (p *Producer) PublishRecordsAdmitted(ctx context.Context, evt *events.RecordsAdmitted) error {
	if evt == nil {
		return fmt.Errorf("records admitted event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishRecordsAdmitted")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("kind", evt.Kind),
		attribute.String("batch_id", evt.BatchID),
		attribute.Int("identities", len(evt.Identities)),
	)

	msg, err := eventMessage(ctx, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.topic)
		return err
	}

	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published %s event: kind=%s batch=%s identities=%d", evt.Type, evt.Kind, evt.BatchID, len(evt.Identities))
	return nil
}
