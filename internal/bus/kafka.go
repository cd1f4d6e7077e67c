package bus

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"carbonalert/internal/config"
)

// KafkaSink delivers messages to Kafka topics. kafka.Writer is safe for
// concurrent use, so one sink serves every region loop.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink from Kafka connection settings. Delivery
// retries live in the Publisher, so the writer itself attempts each
// write once.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{}, // Partition by key
		WriteTimeout: cfg.WriteTimeout.Std(),
		RequiredAcks: kafka.RequireAll,
		Compression:  getCompression(cfg.Compression),
		MaxAttempts:  1,
		Async:        false, // Sync for reliability
	}

	return &KafkaSink{writer: writer}, nil
}

// getCompression returns the kafka compression codec
func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None // no compression
	}
}

// Send writes one message to the topic named in msg.
func (s *KafkaSink) Send(ctx context.Context, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    msg.Time,
	})
}

// Ping verifies the writer is usable.
func (s *KafkaSink) Ping(ctx context.Context) error {
	// Writer stats access does not hit the network but fails fast if the
	// writer was closed.
	_ = s.writer.Stats()
	return ctx.Err()
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
