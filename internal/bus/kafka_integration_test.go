package bus_test

import (
	"context"
	"os"
	"testing"
	"time"

	"carbonalert/internal/bus"
	"carbonalert/internal/config"
)

// skipIfNoKafka skips the test if Kafka is not available
func skipIfNoKafka(t *testing.T) {
	if os.Getenv("KAFKA_TEST") != "1" {
		t.Skip("Skipping Kafka integration test. Set KAFKA_TEST=1 to run.")
	}
}

func TestKafkaSinkPublish(t *testing.T) {
	skipIfNoKafka(t)

	sink, err := bus.NewKafkaSink(config.KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		WriteTimeout: config.Duration(10 * time.Second),
	})
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer sink.Close()

	p := bus.NewPublisher(sink, "carbon.alerts.test", config.PublishConfig{
		MaxAttempts: 3,
		BaseBackoff: config.Duration(500 * time.Millisecond),
		MaxBackoff:  config.Duration(5 * time.Second),
		MaxElapsed:  config.Duration(30 * time.Second),
	})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Publish(ctx, testEvent()); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	stats := p.Stats()
	if stats.Published != 1 {
		t.Errorf("expected 1 message published, got %d", stats.Published)
	}
}
