package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig configures the scraper batch consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// MaxBytes must fit the largest batch body, photos included
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	RebalanceTimeout  time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		Topic:             "scraper-batches",
		GroupID:           "docket-consumer",
		MinBytes:          1,
		MaxBytes:          64e6,
		MaxWait:           3 * time.Second,
		StartOffset:       FirstOffset,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		RebalanceTimeout:  30 * time.Second,
	}
}

// ProducerConfig configures the records-admitted producer
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks: 0 = none, 1 = leader, -1 = all replicas
	RequiredAcks int
	WriteTimeout time.Duration
	// Compression is one of none, gzip, snappy, lz4, zstd
	Compression string
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "records-admitted",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}

const (
	FirstOffset int64 = -2
	LastOffset  int64 = -1
)

// compressionCodec maps a configured name to the kafka-go codec. Unknown names disable compression.
func compressionCodec(name string) kafka.Compression {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	}
	return 0
}
