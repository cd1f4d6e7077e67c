package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carbonalert/internal/bus"
	"carbonalert/internal/config"
	"carbonalert/internal/logger"
	"carbonalert/internal/middleware"
	"carbonalert/internal/scheduler"
	"carbonalert/internal/source"
)

// Monitor is the high-level coordinator: it wires the configuration into
// the provider client, the bus publisher, and the per-region scheduler,
// and serves the observability endpoints.
type Monitor struct {
	cfg        *config.Config
	publisher  *bus.Publisher
	sched      *scheduler.Scheduler
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Monitor with given config. The config must already be
// validated.
func New(cfg *config.Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Run starts background goroutines and blocks until context cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	log := logger.WithComponent("monitor")
	log.Info().Msg("monitor starting")

	// Initialize bus publisher
	if err := m.initPublisher(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize publisher")
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	defer m.publisher.Close()

	// Initialize scheduler over the shared provider client
	m.sched = scheduler.New(scheduler.Config{
		Source:           source.NewClient(m.cfg.Provider),
		Publisher:        m.publisher,
		Regions:          m.cfg.RegionList(),
		DefaultInterval:  m.cfg.Poll.DefaultInterval.Std(),
		FailureThreshold: m.cfg.Poll.FailureThreshold,
	})

	// Initialize HTTP server
	m.initHTTPServer()

	// Start HTTP server in background
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		log.Info().Str("addr", m.httpServer.Addr).Msg("starting HTTP server")
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Stats reporting goroutine
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reportStats(ctx)
	}()

	// Region loops run until ctx is cancelled
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = m.sched.Run(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return m.shutdown(schedDone)
}

// initPublisher builds the configured bus backend and wraps it in the
// retrying publisher.
func (m *Monitor) initPublisher(ctx context.Context) error {
	log := logger.WithComponent("monitor")

	var (
		sink bus.Sink
		err  error
	)
	switch m.cfg.Bus.Backend {
	case "kafka":
		sink, err = bus.NewKafkaSink(m.cfg.Bus.Kafka)
	case "nats":
		sink, err = bus.NewNATSSink(ctx, m.cfg.Bus.NATS, m.cfg.Bus.TopicPrefix)
	default:
		err = fmt.Errorf("unknown bus backend %q", m.cfg.Bus.Backend)
	}
	if err != nil {
		return err
	}

	m.publisher = bus.NewPublisher(sink, m.cfg.Bus.TopicPrefix, m.cfg.Bus.Publish)
	log.Info().
		Str("backend", m.cfg.Bus.Backend).
		Str("topic_prefix", m.cfg.Bus.TopicPrefix).
		Msg("bus publisher initialized")
	return nil
}

// initHTTPServer initializes the observability HTTP server
func (m *Monitor) initHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", m.healthHandler)
	mux.HandleFunc("/stats", m.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	m.httpServer = &http.Server{
		Addr: m.cfg.HTTPAddr,
		Handler: middleware.Chain(
			mux,
			middleware.Recovery,
			middleware.Logging,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (m *Monitor) shutdown(schedDone <-chan struct{}) error {
	log := logger.WithComponent("monitor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop the observability server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := m.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Wait for region loops to notice the cancellation (with timeout)
	select {
	case <-schedDone:
		log.Info().Msg("region loops stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("scheduler shutdown timeout - forcing exit")
	}

	// 3. Close publisher
	log.Info().Msg("closing bus publisher")
	if err := m.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("publisher close error")
	}

	// 4. Wait for remaining goroutines
	m.wg.Wait()

	log.Info().Msg("monitor stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (m *Monitor) reportStats(ctx context.Context) {
	log := logger.WithComponent("monitor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedStats := m.sched.Stats()
			pubStats := m.publisher.Stats()

			log.Info().
				Uint64("polls", schedStats.Polls).
				Uint64("events", schedStats.Events).
				Uint64("events_dropped", schedStats.Dropped).
				Uint64("published", pubStats.Published).
				Uint64("publish_retries", pubStats.Retries).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (m *Monitor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Check bus connectivity
	if err := m.publisher.HealthCheck(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (m *Monitor) statsHandler(w http.ResponseWriter, r *http.Request) {
	schedStats := m.sched.Stats()
	pubStats := m.publisher.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"scheduler": {
			"polls": %d,
			"events": %d,
			"events_dropped": %d
		},
		"publisher": {
			"published": %d,
			"dropped": %d,
			"retries": %d
		},
		"regions": %d
	}`,
		schedStats.Polls,
		schedStats.Events,
		schedStats.Dropped,
		pubStats.Published,
		pubStats.Dropped,
		pubStats.Retries,
		len(m.cfg.Regions),
	)
}
