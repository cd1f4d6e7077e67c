package bus

import (
	"context"
	"errors"
	"time"
)

// Publisher errors
var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrExhausted       = errors.New("publish retries exhausted")
	ErrSerializeFailed = errors.New("failed to serialize event")
)

// Message is one serialized event bound for a broker topic or subject.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// Sink delivers a single message to the broker, once, with no retries.
// Implementations must be safe for concurrent use: the sink is the one
// resource shared across all region loops.
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
