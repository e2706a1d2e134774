// Package config loads the service configuration. Values are layered: defaults in
// code, then an optional YAML file, then environment variables (a .env file in the
// working directory is loaded into the environment first).
//
// Environment variables are prefixed by section, e.g. SERVER_PORT, REDIS_ADDR,
// DB_HOST, OPENWEATHER_API_KEY and FORECAST_CACHE_PURGE_SCHEDULE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/sean-rowe/best-bike-day/internal/core/scoring"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultConfigFile is read when CONFIG_FILE is unset. A missing default file is not an error.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration settings for the service.
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Storage       StorageConfig       `yaml:"storage" envconfig:"STORAGE"`
	Redis         RedisConfig         `yaml:"redis" envconfig:"REDIS"`
	Database      DatabaseConfig      `yaml:"database" envconfig:"DB"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OTEL"`
	OpenWeather   OpenWeatherConfig   `yaml:"openweather" envconfig:"OPENWEATHER"`
	Forecast      ForecastConfig      `yaml:"forecast" envconfig:"FORECAST"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Breaker       BreakerConfig       `yaml:"breaker" envconfig:"BREAKER"`
}

// ServerConfig contains HTTP server settings and timeouts.
type ServerConfig struct {
	Port        string        `yaml:"port" envconfig:"PORT"`
	Environment string        `yaml:"environment" envconfig:"ENVIRONMENT"`
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	IdleTimeout time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`

	// WriteTimeout of zero keeps event streams open indefinitely
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// StorageConfig selects the durable key-value backend.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"`

	// SnapshotPath persists the memory backend; empty keeps it in memory only
	SnapshotPath string `yaml:"snapshot_path" envconfig:"SNAPSHOT_PATH"`
}

// RedisConfig contains Redis connection settings, shared by the storage backend
// and the distributed rate limiter.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ENABLED"`
	Addr         string        `yaml:"addr" envconfig:"ADDR"`
	Password     string        `yaml:"password" envconfig:"PASSWORD"`
	DB           int           `yaml:"db" envconfig:"DB"`
	PoolSize     int           `yaml:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	DialTimeout  time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// DatabaseConfig contains PostgreSQL settings for the fetch audit log and the
// postgres storage backend.
type DatabaseConfig struct {
	Enabled               bool          `yaml:"enabled" envconfig:"ENABLED"`
	Host                  string        `yaml:"host" envconfig:"HOST"`
	Port                  int           `yaml:"port" envconfig:"PORT"`
	User                  string        `yaml:"user" envconfig:"USER"`
	Password              string        `yaml:"password" envconfig:"PASSWORD"`
	Name                  string        `yaml:"name" envconfig:"NAME"`
	SSLMode               string        `yaml:"sslmode" envconfig:"SSLMODE"`
	MaxConnections        int           `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	MaxIdleConnections    int           `yaml:"max_idle_connections" envconfig:"MAX_IDLE_CONNECTIONS"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime" envconfig:"CONNECTION_MAX_LIFETIME"`
	AutoMigrate           bool          `yaml:"auto_migrate" envconfig:"AUTO_MIGRATE"`
}

// ObservabilityConfig contains tracing and metrics settings.
type ObservabilityConfig struct {
	Enabled        bool    `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion string  `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint" envconfig:"EXPORTER_OTLP_ENDPOINT"`
	SampleRate     float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE"`
}

// OpenWeatherConfig contains provider settings.
type OpenWeatherConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" envconfig:"BURST"`
	SearchLimit       int           `yaml:"search_limit" envconfig:"SEARCH_LIMIT"`
}

// ForecastConfig contains engine settings.
type ForecastConfig struct {
	ScoringPolicy      string        `yaml:"scoring_policy" envconfig:"SCORING_POLICY"`
	CacheTTL           time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CachePurgeSchedule string        `yaml:"cache_purge_schedule" envconfig:"CACHE_PURGE_SCHEDULE"`
}

// RateLimitConfig contains API rate limiting settings.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED"`
	Requests int           `yaml:"requests" envconfig:"REQUESTS"`
	Window   time.Duration `yaml:"window" envconfig:"WINDOW"`
}

// BreakerConfig contains circuit breaker settings for provider calls.
type BreakerConfig struct {
	MaxRequests uint32        `yaml:"max_requests" envconfig:"MAX_REQUESTS"`
	Interval    time.Duration `yaml:"interval" envconfig:"INTERVAL"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:      BackendMemory,
			SnapshotPath: "data/store.gob",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Host:                  "localhost",
			Port:                  5432,
			User:                  "bestbikeday",
			Name:                  "bestbikeday",
			SSLMode:               "disable",
			MaxConnections:        10,
			MaxIdleConnections:    2,
			ConnectionMaxLifetime: 5 * time.Minute,
			AutoMigrate:           true,
		},
		Observability: ObservabilityConfig{
			Enabled:        true,
			ServiceName:    "best-bike-day",
			ServiceVersion: "1.0.0",
			SampleRate:     0.1,
		},
		OpenWeather: OpenWeatherConfig{
			BaseURL:           "https://api.openweathermap.org",
			HTTPTimeout:       10 * time.Second,
			RequestsPerSecond: 1,
			Burst:             5,
			SearchLimit:       5,
		},
		Forecast: ForecastConfig{
			ScoringPolicy:      scoring.PolicyWeighted,
			CacheTTL:           30 * time.Minute,
			CachePurgeSchedule: "@every 10m",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Minute,
		},
		Breaker: BreakerConfig{
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by CONFIG_FILE
// (default config.yaml), a .env file and the environment, then validates it.
//
// Returns:
//   - *Config: Validated configuration
//   - error: Unreadable explicit config file, parse failure or invalid value
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()
	path, explicit := os.LookupEnv("CONFIG_FILE")

	if !explicit {
		path = DefaultConfigFile
	}

	if err := cfg.mergeYAML(path, explicit); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeYAML(path string, required bool) error {
	data, err := os.ReadFile(path)

	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var problems []string

	if _, err := scoring.ByName(c.Forecast.ScoringPolicy); err != nil {
		problems = append(problems, err.Error())
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if !c.Database.Enabled {
			problems = append(problems, "storage backend postgres requires DB_ENABLED=true")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Forecast.CacheTTL <= 0 {
		problems = append(problems, "forecast cache TTL must be positive")
	}

	if c.Forecast.CachePurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.Forecast.CachePurgeSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("invalid cache purge schedule: %v", err))
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		problems = append(problems, "rate limit requests and window must be positive")
	}

	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		problems = append(problems, "trace sample rate must be within [0,1]")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
