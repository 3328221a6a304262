package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"bookinggate/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	API        APIConfig        `yaml:"api"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Booking    BookingConfig    `yaml:"booking"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// UpstreamConfig points at the upstream booking API. APIKey is sent as a bearer token.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled      bool  `yaml:"enabled"`
	Port         int   `yaml:"port"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`

	// ConnectRetries is how many extra pings are made at startup.
	ConnectRetries    int           `yaml:"connect_retries"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
}

// CacheConfig controls the lookup cache. Redis is used when redis.address is set,
// otherwise lookups are cached in memory only.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

type BookingConfig struct {
	ConformanceCheck string `yaml:"conformance_check"`
	DisplayTimezone  string `yaml:"display_timezone"`
}

// ConformanceEnabled reports whether bookings must fall inside an open schedule block.
func (b BookingConfig) ConformanceEnabled() bool {
	return b.ConformanceCheck == models.ConformanceEnabled
}

// Location loads the display zone.
func (b BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.DisplayTimezone)
}

type ReconcilerConfig struct {
	// Concurrency limits parallel block creations; 0 means unlimited.
	Concurrency int `yaml:"concurrency"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return DefaultPath
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream base_url %q is not an absolute URL", c.Upstream.BaseURL)
	}
	if c.Upstream.APIKey == "" {
		return errors.New("upstream api_key is required")
	}

	switch c.Booking.ConformanceCheck {
	case models.ConformanceEnabled, models.ConformanceDisabled:
	default:
		return fmt.Errorf("booking conformance_check must be %q or %q, got %q",
			models.ConformanceEnabled, models.ConformanceDisabled, c.Booking.ConformanceCheck)
	}
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("booking display_timezone: %w", err)
	}

	if c.Reconciler.Concurrency < 0 {
		return errors.New("reconciler concurrency must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bookinggate"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 30 * time.Second
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.MaxBodyBytes == 0 {
		c.API.HTTP.MaxBodyBytes = models.DefaultMaxBodyBytes
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.ConnectRetryDelay == 0 {
		c.Redis.ConnectRetryDelay = 500 * time.Millisecond
	}
	if c.Cache.Enabled && c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	c.Booking.ConformanceCheck = strings.ToLower(strings.TrimSpace(c.Booking.ConformanceCheck))
	if c.Booking.ConformanceCheck == "" {
		c.Booking.ConformanceCheck = models.ConformanceDisabled
	}
	if c.Booking.DisplayTimezone == "" {
		c.Booking.DisplayTimezone = models.DefaultDisplayTimezone
	}
}
