package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"carbonalert/internal/models"
)

// Config holds runtime configuration for the alert daemon. Malformed
// configuration is a startup-time fatal error, never a runtime condition.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTPAddr string         `yaml:"http_addr"`
	Poll     PollConfig     `yaml:"poll"`
	Provider ProviderConfig `yaml:"provider"`
	Bus      BusConfig      `yaml:"bus"`
	Regions  []RegionConfig `yaml:"regions"`
}

// PollConfig controls the per-region polling loops.
type PollConfig struct {
	// Interval used by regions that do not set their own
	DefaultInterval Duration `yaml:"default_interval"`

	// Consecutive fetch failures before a region is flagged degraded
	FailureThreshold int `yaml:"failure_threshold"`
}

// ProviderConfig points at the upstream carbon-intensity API.
type ProviderConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`

	// Requests per second shared across all region fetchers
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// BusConfig selects and configures the message bus backend.
type BusConfig struct {
	// Backend: kafka or nats
	Backend string `yaml:"backend"`

	// Topic (or subject) prefix; the region id is appended
	TopicPrefix string `yaml:"topic_prefix"`

	Kafka   KafkaConfig   `yaml:"kafka"`
	NATS    NATSConfig    `yaml:"nats"`
	Publish PublishConfig `yaml:"publish"`
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Compression  string   `yaml:"compression"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// NATSConfig holds NATS JetStream connection settings.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// PublishConfig bounds the retry behaviour of the event publisher.
type PublishConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseBackoff Duration `yaml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff"`
	MaxElapsed  Duration `yaml:"max_elapsed"`
}

// RegionConfig declares one region to track.
type RegionConfig struct {
	ID       int          `yaml:"id"`
	Label    string       `yaml:"label"`
	Interval Duration     `yaml:"interval"`
	Rules    []RuleConfig `yaml:"rules"`
}

// RuleConfig is a single threshold rule in declared priority order.
type RuleConfig struct {
	Level string  `yaml:"level"`
	Op    string  `yaml:"op"`
	Bound float64 `yaml:"bound"`
}

const (
	// DefaultBaseURL is the public carbon-intensity API for Great Britain.
	DefaultBaseURL = "https://api.carbonintensity.org.uk"

	// Provider region ids are 1..17.
	minRegionID = 1
	maxRegionID = 17
)

// Default returns a sensible default config for local dev. Regions must
// still be supplied.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
		Poll: PollConfig{
			DefaultInterval:  Duration(30 * time.Second),
			FailureThreshold: 3,
		},
		Provider: ProviderConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   Duration(10 * time.Second),
			RateLimit: 5,
			RateBurst: 5,
		},
		Bus: BusConfig{
			Backend:     "kafka",
			TopicPrefix: "carbon.alerts",
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				WriteTimeout: Duration(10 * time.Second),
			},
			NATS: NATSConfig{
				URL:    "nats://localhost:4222",
				Stream: "CARBON_ALERTS",
			},
			Publish: PublishConfig{
				MaxAttempts: 5,
				BaseBackoff: Duration(500 * time.Millisecond),
				MaxBackoff:  Duration(10 * time.Second),
				MaxElapsed:  Duration(time.Minute),
			},
		},
	}
}

// Load reads the YAML file at path, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validation errors
var (
	ErrNoRegions        = errors.New("at least one region is required")
	ErrDuplicateRegion  = errors.New("duplicate region id")
	ErrRegionID         = errors.New("region id must be between 1 and 17")
	ErrNoRules          = errors.New("region needs at least one threshold rule")
	ErrUnknownBackend   = errors.New("unknown bus backend")
	ErrNoBrokers        = errors.New("kafka backend needs at least one broker")
	ErrNoNATSURL        = errors.New("nats backend needs a url")
	ErrBadInterval      = errors.New("poll interval must be positive")
	ErrBadTimeout       = errors.New("provider timeout must be positive")
	ErrBadRateLimit     = errors.New("provider rate limit must be positive")
	ErrBadAttempts      = errors.New("publish max_attempts must be at least 1")
	ErrBadBackoff       = errors.New("publish base_backoff must be positive and not above max_backoff")
	ErrBadFailThreshold = errors.New("poll failure_threshold must be at least 1")
)

// Validate checks the full configuration surface. Any error is fatal.
func (c *Config) Validate() error {
	if c.Poll.DefaultInterval <= 0 {
		return ErrBadInterval
	}
	if c.Poll.FailureThreshold < 1 {
		return ErrBadFailThreshold
	}

	if c.Provider.BaseURL == "" {
		return errors.New("provider base_url is required")
	}
	if c.Provider.Timeout <= 0 {
		return ErrBadTimeout
	}
	if c.Provider.RateLimit <= 0 || c.Provider.RateBurst < 1 {
		return ErrBadRateLimit
	}

	switch c.Bus.Backend {
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return ErrNoBrokers
		}
	case "nats":
		if c.Bus.NATS.URL == "" {
			return ErrNoNATSURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Bus.Backend)
	}
	if c.Bus.TopicPrefix == "" {
		return errors.New("bus topic_prefix is required")
	}

	pub := c.Bus.Publish
	if pub.MaxAttempts < 1 {
		return ErrBadAttempts
	}
	if pub.BaseBackoff <= 0 || pub.MaxBackoff < pub.BaseBackoff {
		return ErrBadBackoff
	}

	if len(c.Regions) == 0 {
		return ErrNoRegions
	}
	seen := make(map[int]bool, len(c.Regions))
	for _, rc := range c.Regions {
		if rc.ID < minRegionID || rc.ID > maxRegionID {
			return fmt.Errorf("%w: got %d", ErrRegionID, rc.ID)
		}
		if seen[rc.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateRegion, rc.ID)
		}
		seen[rc.ID] = true
		if rc.Interval < 0 {
			return fmt.Errorf("region %d: %w", rc.ID, ErrBadInterval)
		}
		if len(rc.Rules) == 0 {
			return fmt.Errorf("region %d: %w", rc.ID, ErrNoRules)
		}
		for i, rule := range rc.Rules {
			tr := models.ThresholdRule{
				Level: models.Level(rule.Level),
				Op:    models.Op(rule.Op),
				Bound: rule.Bound,
			}
			if err := tr.Validate(); err != nil {
				return fmt.Errorf("region %d rule %d: %w", rc.ID, i, err)
			}
		}
	}
	return nil
}

// RegionList converts the configured regions into their model form,
// filling in default labels and intervals.
func (c *Config) RegionList() []models.Region {
	regions := make([]models.Region, 0, len(c.Regions))
	for _, rc := range c.Regions {
		id := models.RegionID(rc.ID)

		label := rc.Label
		if label == "" {
			label = id.DefaultLabel()
		}

		interval := rc.Interval.Std()
		if interval == 0 {
			interval = c.Poll.DefaultInterval.Std()
		}

		rules := make([]models.ThresholdRule, 0, len(rc.Rules))
		for _, rule := range rc.Rules {
			rules = append(rules, models.ThresholdRule{
				Level: models.Level(rule.Level),
				Op:    models.Op(rule.Op),
				Bound: rule.Bound,
			})
		}

		regions = append(regions, models.Region{
			ID:       id,
			Label:    label,
			Rules:    rules,
			Interval: interval,
		})
	}
	return regions
}
