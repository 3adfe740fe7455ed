package config

import (
	"log/slog"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("expected 30s ttl, got %v", cfg.CacheTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Error("store URLs should default to empty")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":             "9090",
		"DATABASE_URL":     "postgres://localhost/pnl",
		"CACHE_TTL":        "2m",
		"LOG_LEVEL":        "DEBUG",
		"MAX_UPLOAD_BYTES": "1024",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.DatabaseURL != "postgres://localhost/pnl" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.CacheTTL != 2*time.Minute || cfg.LogLevel != slog.LevelDebug || cfg.MaxUploadBytes != 1024 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []map[string]string{
		{"CACHE_TTL": "soon"},
		{"CACHE_TTL": "-1s"},
		{"MAX_UPLOAD_BYTES": "0"},
		{"LOG_LEVEL": "loud"},
	}
	for _, tt := range tests {
		if _, err := FromEnv(env(tt)); err == nil {
			t.Errorf("expected error for %v", tt)
		}
	}
}
