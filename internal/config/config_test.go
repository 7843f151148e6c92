package config

import (
	"strings"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"LISTEN_ADDR", "LOG_LEVEL", "DATABASE_URL",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"TIKHUB_API_BASE_URL", "TIKHUB_API_KEY", "FETCH_TIMEOUT", "FETCH_RATE_PER_SECOND",
		"QUEUE_BACKEND", "QUEUE_NAME", "QUEUE_DLQ", "FETCH_WORKERS", "QUEUE_MAX_MESSAGE_AGE",
		"OTEL_ENABLED", "OTEL_TRACE_MODE", "OTEL_TRACE_SAMPLE_RATIO", "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/instatrack?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8000" {
		t.Fatalf("ListenAddr = %q, want :8000", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("Redis.Addr() = %q, want localhost:6379", cfg.Redis.Addr())
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Fatalf("Upstream.BaseURL = %q, want default", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.RequestTimeout != 60*time.Second {
		t.Fatalf("RequestTimeout = %s, want 60s", cfg.Upstream.RequestTimeout)
	}
	if cfg.Worker.QueueBackend != "redis" {
		t.Fatalf("QueueBackend = %q, want redis", cfg.Worker.QueueBackend)
	}
	if cfg.Worker.Workers != 8 {
		t.Fatalf("Workers = %d, want 8", cfg.Worker.Workers)
	}
	if cfg.Telemetry.OTELEnabled {
		t.Fatalf("OTELEnabled = true, want false by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db:5432/monitor")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("TIKHUB_API_KEY", "secret")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("FETCH_WORKERS", "4")
	t.Setenv("QUEUE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Fatalf("ListenAddr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug (lowercased)", cfg.Server.LogLevel)
	}
	if cfg.Redis.Addr() != "cache.internal:6380" {
		t.Fatalf("Redis.Addr() = %q", cfg.Redis.Addr())
	}
	if cfg.Upstream.APIKey != "secret" {
		t.Fatalf("APIKey = %q, want secret", cfg.Upstream.APIKey)
	}
	if cfg.Upstream.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %s, want 30s", cfg.Upstream.RequestTimeout)
	}
	if cfg.Worker.Workers != 4 {
		t.Fatalf("Workers = %d, want 4", cfg.Worker.Workers)
	}
	if cfg.Worker.QueueBackend != "memory" {
		t.Fatalf("QueueBackend = %q, want memory", cfg.Worker.QueueBackend)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearConfigEnv(t)

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("Load() error = %v, want DATABASE_URL requirement", err)
	}
}

func TestLoadInvalidValuesFallBackToDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/instatrack")
	t.Setenv("REDIS_PORT", "not-a-number")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Redis.Port != 6379 {
		t.Fatalf("Redis.Port = %d, want default 6379", cfg.Redis.Port)
	}
	if cfg.Upstream.RequestTimeout != 60*time.Second {
		t.Fatalf("RequestTimeout = %s, want default 60s", cfg.Upstream.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*Config)
		wantPart string
	}{
		{
			name:     "bad_log_level",
			mutate:   func(c *Config) { c.Server.LogLevel = "verbose" },
			wantPart: "LOG_LEVEL",
		},
		{
			name:     "bad_redis_port",
			mutate:   func(c *Config) { c.Redis.Port = 70000 },
			wantPart: "REDIS_PORT",
		},
		{
			name:     "bad_queue_backend",
			mutate:   func(c *Config) { c.Worker.QueueBackend = "rabbitmq" },
			wantPart: "QUEUE_BACKEND",
		},
		{
			name:     "bad_worker_count",
			mutate:   func(c *Config) { c.Worker.Workers = 0 },
			wantPart: "FETCH_WORKERS",
		},
		{
			name:     "bad_fetch_timeout",
			mutate:   func(c *Config) { c.Upstream.RequestTimeout = 0 },
			wantPart: "FETCH_TIMEOUT",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantPart) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tc.wantPart)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8000", LogLevel: "info"},
		Database: DatabaseConfig{URL: "postgres://localhost/instatrack"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Upstream: UpstreamConfig{RequestTimeout: time.Minute},
		Worker:   WorkerConfig{QueueBackend: "redis", Workers: 8},
	}
}
