package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"carbonalert/internal/config"
	"carbonalert/internal/models"
)

const validYAML = `
log_level: debug
poll:
  default_interval: 45s
  failure_threshold: 5
provider:
  base_url: https://api.carbonintensity.org.uk
  timeout: 10s
  rate_limit: 5
  rate_burst: 5
bus:
  backend: kafka
  topic_prefix: carbon.alerts
  kafka:
    brokers: [localhost:9092]
  publish:
    max_attempts: 4
    base_backoff: 250ms
    max_backoff: 8s
    max_elapsed: 30s
regions:
  - id: 13
    label: London
    rules:
      - level: high
        op: ">="
        bound: 300
      - level: low
        op: "<="
        bound: 50
  - id: 16
    interval: 2m
    rules:
      - level: high
        op: ">"
        bound: 200
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level debug, got %q", cfg.LogLevel)
	}
	if cfg.Poll.DefaultInterval.Std() != 45*time.Second {
		t.Errorf("expected default_interval 45s, got %v", cfg.Poll.DefaultInterval.Std())
	}
	if cfg.Bus.Publish.BaseBackoff.Std() != 250*time.Millisecond {
		t.Errorf("expected base_backoff 250ms, got %v", cfg.Bus.Publish.BaseBackoff.Std())
	}
	if len(cfg.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(cfg.Regions))
	}
}

func TestLoadRejectsUnparseableYAML(t *testing.T) {
	if _, err := config.Load(writeConfig(t, "{not yaml")); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestRegionListDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	regions := cfg.RegionList()

	if regions[0].Label != "London" {
		t.Errorf("expected configured label, got %q", regions[0].Label)
	}
	if regions[0].Interval != 45*time.Second {
		t.Errorf("expected default interval, got %v", regions[0].Interval)
	}

	// Region 16 has no label: the provider name fills in.
	if regions[1].Label != "Scotland" {
		t.Errorf("expected default label Scotland, got %q", regions[1].Label)
	}
	if regions[1].Interval != 2*time.Minute {
		t.Errorf("expected region interval 2m, got %v", regions[1].Interval)
	}
	if regions[1].Rules[0].Op != models.OpGreater {
		t.Errorf("expected > operator, got %q", regions[1].Rules[0].Op)
	}
}

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Regions = []config.RegionConfig{
		{
			ID:    13,
			Label: "London",
			Rules: []config.RuleConfig{{Level: "high", Op: ">", Bound: 200}},
		},
	}
	return cfg
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name:    "no regions",
			mutate:  func(c *config.Config) { c.Regions = nil },
			wantErr: config.ErrNoRegions,
		},
		{
			name: "duplicate region",
			mutate: func(c *config.Config) {
				c.Regions = append(c.Regions, c.Regions[0])
			},
			wantErr: config.ErrDuplicateRegion,
		},
		{
			name:    "region id out of range",
			mutate:  func(c *config.Config) { c.Regions[0].ID = 42 },
			wantErr: config.ErrRegionID,
		},
		{
			name:    "region without rules",
			mutate:  func(c *config.Config) { c.Regions[0].Rules = nil },
			wantErr: config.ErrNoRules,
		},
		{
			name:    "bad operator",
			mutate:  func(c *config.Config) { c.Regions[0].Rules[0].Op = "==" },
			wantErr: models.ErrInvalidOp,
		},
		{
			name:    "reserved level",
			mutate:  func(c *config.Config) { c.Regions[0].Rules[0].Level = "unknown" },
			wantErr: models.ErrReservedLevel,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Bus.Backend = "rabbitmq" },
			wantErr: config.ErrUnknownBackend,
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *config.Config) { c.Bus.Kafka.Brokers = nil },
			wantErr: config.ErrNoBrokers,
		},
		{
			name: "nats without url",
			mutate: func(c *config.Config) {
				c.Bus.Backend = "nats"
				c.Bus.NATS.URL = ""
			},
			wantErr: config.ErrNoNATSURL,
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *config.Config) { c.Bus.Publish.MaxAttempts = 0 },
			wantErr: config.ErrBadAttempts,
		},
		{
			name: "base backoff above max",
			mutate: func(c *config.Config) {
				c.Bus.Publish.BaseBackoff = config.Duration(20 * time.Second)
			},
			wantErr: config.ErrBadBackoff,
		},
		{
			name:    "zero default interval",
			mutate:  func(c *config.Config) { c.Poll.DefaultInterval = 0 },
			wantErr: config.ErrBadInterval,
		},
		{
			name:    "zero failure threshold",
			mutate:  func(c *config.Config) { c.Poll.FailureThreshold = 0 },
			wantErr: config.ErrBadFailThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
