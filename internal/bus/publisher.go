package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"carbonalert/internal/config"
	"carbonalert/internal/logger"
	"carbonalert/internal/metrics"
	"carbonalert/internal/models"
)

// Publisher delivers alert events to the bus with bounded, jittered
// exponential-backoff retries. One Publisher is shared by all region
// loops; each loop blocks on Publish until delivery succeeds or retries
// are exhausted, which keeps at most one event in flight per region.
type Publisher struct {
	sink        Sink
	topicPrefix string
	maxAttempts int
	maxElapsed  time.Duration
	policy      Policy
	closed      atomic.Bool

	// Stats
	published atomic.Uint64
	dropped   atomic.Uint64
	retries   atomic.Uint64
}

// NewPublisher creates a publisher over the given sink.
func NewPublisher(sink Sink, prefix string, cfg config.PublishConfig) *Publisher {
	return &Publisher{
		sink:        sink,
		topicPrefix: prefix,
		maxAttempts: cfg.MaxAttempts,
		maxElapsed:  cfg.MaxElapsed.Std(),
		policy: Policy{
			Base: cfg.BaseBackoff.Std(),
			Cap:  cfg.MaxBackoff.Std(),
		},
	}
}

// Publish serializes event and delivers it to the topic derived from the
// region id. On exhaustion the returned error wraps ErrExhausted and the
// event is dropped; the caller decides whether that is fatal (it is not).
func (p *Publisher) Publish(ctx context.Context, event *models.AlertEvent) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := Message{
		Topic: fmt.Sprintf("%s.%s", p.topicPrefix, event.RegionID.Code()),
		Key:   []byte(event.RegionID.Code()), // partition by region
		Value: data,
		Headers: map[string]string{
			"event_id":  event.ID,
			"region_id": event.RegionID.Code(),
		},
		Time: event.Timestamp,
	}

	start := time.Now()
	err = p.sendWithRetry(ctx, msg)
	metrics.PublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrExhausted) {
			p.dropped.Add(1)
			metrics.PublishTotal.WithLabelValues("failed").Inc()
			metrics.EventsDropped.Inc()
		}
		return err
	}

	p.published.Add(1)
	metrics.PublishTotal.WithLabelValues("success").Inc()
	return nil
}

// sendWithRetry attempts delivery up to maxAttempts times or until
// maxElapsed has passed, whichever comes first.
func (p *Publisher) sendWithRetry(ctx context.Context, msg Message) error {
	log := logger.WithComponent("publisher")
	deadline := time.Now().Add(p.maxElapsed)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := p.policy.Jittered(attempt - 1)

			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("topic", msg.Topic).
				Msg("retrying publish")

			p.retries.Add(1)
			metrics.PublishRetries.Inc()

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			if p.maxElapsed > 0 && time.Now().After(deadline) {
				break
			}
		}

		err := p.sink.Send(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("topic", msg.Topic).
			Msg("publish attempt failed")

		// Cancellation is not transient
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	log.Error().
		Err(lastErr).
		Int("max_attempts", p.maxAttempts).
		Str("topic", msg.Topic).
		Msg("publish failed after all retries")

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, p.maxAttempts, lastErr)
}

// HealthCheck verifies the publisher can reach the broker.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	return p.sink.Ping(ctx)
}

// Close closes the underlying sink.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}
	return p.sink.Close()
}

// Stats returns publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Retries:   p.retries.Load(),
	}
}

// Stats holds publisher counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	Retries   uint64
}
