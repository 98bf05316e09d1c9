package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("ttl = %v", cfg.SessionTTL)
	}
	if cfg.RateLimitPerSecond != 50 || cfg.RateLimitBurst != 100 {
		t.Fatalf("rate limit = %d/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("max body = %d", cfg.MaxBodyBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STAYADMIN_ADDR", ":9999")
	t.Setenv("STAYADMIN_SESSION_TTL", "30m")
	t.Setenv("STAYADMIN_REDIS_DB", "3")
	t.Setenv("STAYADMIN_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.SessionTTL != 30*time.Minute || cfg.RedisDB != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STAYADMIN_SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable TTL")
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("STAYADMIN_SESSION_TTL", "-1h")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative TTL")
	}
}
