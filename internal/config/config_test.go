package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}
	if cfg.GRPCRequestTimeout != 10*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.GRPCRequestTimeout, cfg.ShutdownTimeout)
	}
	if !cfg.MigrateOnStart || cfg.RateLimitEnabled || cfg.OTelEnabled {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.Location != time.Local {
		t.Fatalf("location = %v, want Local", cfg.Location)
	}
	if cfg.HTTPBodyLimitBytes != 1<<20 {
		t.Fatalf("body limit = %d", cfg.HTTPBodyLimitBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VETCAB_HTTP_ADDR", ":9090")
	t.Setenv("VETCAB_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/vet")
	t.Setenv("VETCAB_SCHEDULE_TIMEZONE", "Europe/Bucharest")
	t.Setenv("VETCAB_HTTP_CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("VETCAB_RATELIMIT_ENABLED", "true")
	t.Setenv("VETCAB_RATELIMIT_WINDOW", "30s")
	t.Setenv("VETCAB_DATABASE_MIGRATE_ON_START", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/vet" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.Location.String() != "Europe/Bucharest" {
		t.Fatalf("location = %v", cfg.Location)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitWindow != 30*time.Second {
		t.Fatalf("rate limit = %v / %v", cfg.RateLimitEnabled, cfg.RateLimitWindow)
	}
	if cfg.MigrateOnStart {
		t.Fatalf("migrate on start should be disabled")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadPlatformPort(t *testing.T) {
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("http addr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("grpc addr = %q", cfg.GRPCAddr())
	}

	t.Setenv("VETCAB_HTTP_ADDR", "127.0.0.1:9090")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("http addr = %q, explicit address should win over PORT", cfg.HTTPAddr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"bad duration": {"VETCAB_SHUTDOWN_TIMEOUT", "soon"},
		"bad timezone": {"VETCAB_SCHEDULE_TIMEZONE", "Mars/Olympus"},
		"bad ratio":    {"VETCAB_OTEL_SAMPLING_RATIO", "2"},
		"bad port":     {"PORT", "http"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", env[0], env[1])
			}
		})
	}
}
