package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultUpstreamBaseURL is the TikHub Instagram web app API root.
const DefaultUpstreamBaseURL = "https://api.tikhub.io/api/v1/instagram/web_app"

// Config is the root application configuration. It is read from the
// environment once at startup and treated as immutable afterwards.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Upstream  UpstreamConfig
	Worker    WorkerConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string
	LogLevel   string
}

// DatabaseConfig contains relational store settings.
type DatabaseConfig struct {
	URL string
}

// RedisConfig contains cache and broker connectivity settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// UpstreamConfig configures the TikHub data API client.
type UpstreamConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	RatePerSecond  float64
}

// WorkerConfig configures job dispatch and consumption.
type WorkerConfig struct {
	QueueBackend  string
	QueueName     string
	DeadLetter    string
	Workers       int
	MaxMessageAge time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
	OTLPEndpoint         string
}

// Addr returns the host:port address for Redis connections.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			ListenAddr: getEnvString("LISTEN_ADDR", ":8000"),
			LogLevel:   strings.ToLower(getEnvString("LOG_LEVEL", "info")),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnvString("TIKHUB_API_BASE_URL", DefaultUpstreamBaseURL),
			APIKey:         os.Getenv("TIKHUB_API_KEY"),
			RequestTimeout: getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
			RatePerSecond:  getEnvFloat("FETCH_RATE_PER_SECOND", 5),
		},
		Worker: WorkerConfig{
			QueueBackend:  strings.ToLower(getEnvString("QUEUE_BACKEND", "redis")),
			QueueName:     getEnvString("QUEUE_NAME", "instatrack.fetch.jobs"),
			DeadLetter:    getEnvString("QUEUE_DLQ", ""),
			Workers:       getEnvInt("FETCH_WORKERS", 8),
			MaxMessageAge: getEnvDuration("QUEUE_MAX_MESSAGE_AGE", 10*time.Minute),
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          getEnvBool("OTEL_ENABLED", false),
			OTELTraceMode:        getEnvString("OTEL_TRACE_MODE", "sampled"),
			OTELTraceSampleRatio: getEnvFloat("OTEL_TRACE_SAMPLE_RATIO", 0.1),
			OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "LOG_LEVEL must be one of debug|info|warn|error")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, "REDIS_PORT must be a valid port number")
	}
	if c.Worker.QueueBackend != "redis" && c.Worker.QueueBackend != "memory" {
		errs = append(errs, "QUEUE_BACKEND must be redis or memory")
	}
	if c.Worker.Workers <= 0 {
		errs = append(errs, "FETCH_WORKERS must be > 0")
	}
	if c.Upstream.RequestTimeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be > 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
