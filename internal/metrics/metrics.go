package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics (observability server)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonalert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carbonalert_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Polling metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonalert_polls_total",
			Help: "Total number of polls per region",
		},
		[]string{"region", "status"}, // status: success, error
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carbonalert_fetch_duration_seconds",
			Help:    "Time taken to fetch a reading from the provider",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carbonalert_consecutive_fetch_failures",
			Help: "Consecutive fetch failures per region",
		},
		[]string{"region"},
	)

	DegradedRegions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carbonalert_region_degraded",
			Help: "1 when a region's fetch failures crossed the threshold",
		},
		[]string{"region"},
	)

	// Alert metrics
	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonalert_alert_transitions_total",
			Help: "Total number of alert level transitions",
		},
		[]string{"region", "from", "to"},
	)

	CurrentIntensity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carbonalert_intensity_gco2_kwh",
			Help: "Last fetched carbon intensity per region in gCO2/kWh",
		},
		[]string{"region"},
	)

	// Bus publisher metrics
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonalert_publish_total",
			Help: "Total number of alert events published to the bus",
		},
		[]string{"status"}, // status: success, failed
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carbonalert_publish_duration_seconds",
			Help:    "Time taken to publish an event including retries",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	PublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carbonalert_publish_retries_total",
			Help: "Total number of bus publish retries",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carbonalert_events_dropped_total",
			Help: "Total number of alert events dropped after retry exhaustion",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carbonalert_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
