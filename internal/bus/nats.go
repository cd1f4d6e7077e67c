package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"carbonalert/internal/config"
)

// NATSSink delivers messages to NATS JetStream subjects. The connection
// handles its own locking, so one sink serves every region loop.
type NATSSink struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSSink connects to the broker and ensures the stream exists with
// the topic prefix bound as its subject space.
func NewNATSSink(ctx context.Context, cfg config.NATSConfig, topicPrefix string) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("carbonalertd"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{topicPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	return &NATSSink{nc: nc, js: js}, nil
}

// Send publishes one message to its subject. The event id doubles as the
// JetStream deduplication id, so a retry after a lost ack cannot produce
// a second copy.
func (s *NATSSink) Send(ctx context.Context, msg Message) error {
	m := &nats.Msg{
		Subject: msg.Topic,
		Data:    msg.Value,
		Header:  make(nats.Header),
	}

	if id, ok := msg.Headers["event_id"]; ok {
		m.Header.Set("Nats-Msg-Id", id)
	}
	for k, v := range msg.Headers {
		m.Header.Set("X-Meta-"+k, v)
	}

	if _, err := s.js.PublishMsg(ctx, m); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Ping round-trips the connection.
func (s *NATSSink) Ping(ctx context.Context) error {
	return s.nc.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}
