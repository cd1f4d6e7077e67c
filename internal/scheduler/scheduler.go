package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"carbonalert/internal/alerts"
	"carbonalert/internal/logger"
	"carbonalert/internal/metrics"
	"carbonalert/internal/models"
	"carbonalert/internal/source"
)

// EventPublisher is the bus boundary the scheduler drives. Publish blocks
// until the event is delivered or its retries are exhausted.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.AlertEvent) error
}

// Scheduler owns one independent polling loop per configured region.
// Regions share no mutable state; the publisher is the only shared
// resource and carries its own synchronization. Within a region, a poll
// never starts while the previous poll's event is still publishing, so
// per-region event order is strict.
type Scheduler struct {
	src       source.Source
	publisher EventPublisher
	regions   []models.Region

	defaultInterval  time.Duration
	failureThreshold int

	wg sync.WaitGroup

	// Stats
	polls   atomic.Uint64
	events  atomic.Uint64
	dropped atomic.Uint64
}

// Config holds scheduler configuration.
type Config struct {
	Source           source.Source
	Publisher        EventPublisher
	Regions          []models.Region
	DefaultInterval  time.Duration
	FailureThreshold int
}

// New creates a scheduler for the configured regions.
func New(cfg Config) *Scheduler {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}

	return &Scheduler{
		src:              cfg.Source,
		publisher:        cfg.Publisher,
		regions:          cfg.Regions,
		defaultInterval:  cfg.DefaultInterval,
		failureThreshold: cfg.FailureThreshold,
	}
}

// Run starts one loop per region and blocks until ctx is cancelled and
// every loop has exited.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.WithComponent("scheduler")
	log.Info().
		Int("regions", len(s.regions)).
		Dur("default_interval", s.defaultInterval).
		Msg("starting region loops")

	for _, region := range s.regions {
		s.wg.Add(1)
		go s.regionLoop(ctx, region)
	}

	s.wg.Wait()
	log.Info().Msg("all region loops stopped")
	return nil
}

// regionLoop polls one region for the process lifetime. The first poll
// fires immediately; later polls wait out the region's interval. Each
// iteration checks for cancellation before doing any work.
func (s *Scheduler) regionLoop(ctx context.Context, region models.Region) {
	defer s.wg.Done()

	log := logger.WithRegion(region).With().Str("component", "scheduler").Logger()

	interval := region.Interval
	if interval <= 0 {
		interval = s.defaultInterval
	}

	machine := alerts.NewStateMachine(region)

	log.Info().Dur("interval", interval).Msg("region loop started")
	defer log.Info().Msg("region loop stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.poll(ctx, region, machine, log)
		timer.Reset(interval)
	}
}

// poll runs one fetch-evaluate-publish cycle. A panic inside one cycle is
// recovered so a single bad poll cannot take the region loop down with it.
func (s *Scheduler) poll(ctx context.Context, region models.Region, machine *alerts.StateMachine, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("poll panic recovered")
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
		}
	}()

	s.polls.Add(1)

	start := time.Now()
	reading, err := s.src.Fetch(ctx, region)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.recordFetchFailure(region, machine, err, log)
		return
	}

	s.recordFetchSuccess(region, machine, log)

	metrics.PollsTotal.WithLabelValues(region.ID.Code(), "success").Inc()
	metrics.CurrentIntensity.WithLabelValues(region.ID.Code()).Set(reading.Value)

	event, ok := machine.Observe(reading)
	if !ok {
		log.Debug().
			Float64("value", reading.Value).
			Str("level", string(machine.Level())).
			Msg("level unchanged")
		return
	}

	metrics.AlertTransitions.WithLabelValues(
		region.ID.Code(),
		string(event.Previous),
		string(event.New),
	).Inc()

	log.Info().
		Str("previous", string(event.Previous)).
		Str("new", string(event.New)).
		Float64("value", event.Value).
		Msg("alert level transition")

	s.events.Add(1)

	// Block this region until the publish completes so events stay
	// ordered and at most one is in flight per region.
	if err := s.publisher.Publish(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// In-flight event is abandoned on shutdown, not requeued
			return
		}
		s.dropped.Add(1)
		log.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("previous", string(event.Previous)).
			Str("new", string(event.New)).
			Msg("alert notification lost")
	}
}

// recordFetchFailure counts a failed fetch and flags the region degraded
// once the consecutive failure count crosses the threshold. The alert
// level is never touched on failure.
func (s *Scheduler) recordFetchFailure(region models.Region, machine *alerts.StateMachine, err error, log zerolog.Logger) {
	failures := machine.RecordFailure()

	metrics.PollsTotal.WithLabelValues(region.ID.Code(), "error").Inc()
	metrics.ConsecutiveFailures.WithLabelValues(region.ID.Code()).Set(float64(failures))

	ev := log.Warn()
	if fe, ok := source.AsFetchError(err); ok {
		ev = ev.Str("kind", fe.Kind.String())
		if fe.Status != 0 {
			ev = ev.Int("status", fe.Status)
		}
	}
	ev.Err(err).Int("consecutive_failures", failures).Msg("fetch failed")

	if failures == s.failureThreshold {
		metrics.DegradedRegions.WithLabelValues(region.ID.Code()).Set(1)
		log.Error().
			Int("consecutive_failures", failures).
			Msg("region degraded: repeated fetch failures")
	}
}

// recordFetchSuccess clears the failure count and the degraded flag.
func (s *Scheduler) recordFetchSuccess(region models.Region, machine *alerts.StateMachine, log zerolog.Logger) {
	if machine.Failures() >= s.failureThreshold {
		log.Info().Msg("region recovered")
	}
	machine.RecordSuccess()
	metrics.ConsecutiveFailures.WithLabelValues(region.ID.Code()).Set(0)
	metrics.DegradedRegions.WithLabelValues(region.ID.Code()).Set(0)
}

// Stats returns scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Polls:   s.polls.Load(),
		Events:  s.events.Load(),
		Dropped: s.dropped.Load(),
	}
}

// Stats holds scheduler counters.
type Stats struct {
	Polls   uint64
	Events  uint64
	Dropped uint64
}
