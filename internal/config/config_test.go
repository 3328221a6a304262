package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookinggate/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_UPSTREAM_KEY", "secret")

	yamlContent := `
upstream:
  base_url: "https://upstream.example.com/v1"
  api_key: "${TEST_UPSTREAM_KEY}"
  timeout: 5s
booking:
  conformance_check: Enabled
cache:
  enabled: true
reconciler:
  concurrency: 4
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Upstream.APIKey != "secret" {
		t.Errorf("expected api_key from env, got %q", cfg.Upstream.APIKey)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Upstream.Timeout)
	}
	if !cfg.Booking.ConformanceEnabled() {
		t.Errorf("expected conformance check enabled")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected default cache ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.Reconciler.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Reconciler.Concurrency)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{Upstream: UpstreamConfig{BaseURL: "https://api.example.com", APIKey: "k"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Upstream.BaseURL = "" }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.Upstream.BaseURL = "/api" }, wantErr: true},
		{name: "missing api key", mutate: func(c *Config) { c.Upstream.APIKey = "" }, wantErr: true},
		{name: "bad conformance value", mutate: func(c *Config) { c.Booking.ConformanceCheck = "sometimes" }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.Booking.DisplayTimezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative concurrency", mutate: func(c *Config) { c.Reconciler.Concurrency = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.HTTP.MaxBodyBytes != models.DefaultMaxBodyBytes {
		t.Errorf("expected default body cap %d, got %d", models.DefaultMaxBodyBytes, cfg.API.HTTP.MaxBodyBytes)
	}
	if cfg.Booking.ConformanceCheck != models.ConformanceDisabled {
		t.Errorf("expected conformance check disabled by default, got %q", cfg.Booking.ConformanceCheck)
	}
	if cfg.Booking.DisplayTimezone != models.DefaultDisplayTimezone {
		t.Errorf("expected display timezone %s, got %s", models.DefaultDisplayTimezone, cfg.Booking.DisplayTimezone)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("expected no cache ttl when cache disabled, got %s", cfg.Cache.TTL)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("expected %s, got %s", DefaultPath, got)
	}
	t.Setenv("CONFIG_PATH", "/etc/gate.yaml")
	if got := PathFromEnv(); got != "/etc/gate.yaml" {
		t.Errorf("expected /etc/gate.yaml, got %s", got)
	}
}
