// Package config loads service configuration from the environment and fails
// fast on values that cannot work.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything the API binary needs to start. Values come from
// STAYADMIN_* environment variables; an optional .env file is loaded by the
// binary before this runs.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// PostgresDSN selects the Postgres document backend. Empty means the
	// in-memory backend, which suits tests and local demos only.
	PostgresDSN string

	// RedisAddr selects the Redis session store. Empty means sessions live
	// next to the documents (Postgres) or in memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SessionTTL bounds session lifetime.
	SessionTTL time.Duration

	// SnapshotSecret signs the client-side identity snapshot. Optional;
	// empty disables snapshots.
	SnapshotSecret string

	LogLevel  string
	LogFormat string

	// RateLimitPerSecond and RateLimitBurst shape the per-IP token bucket.
	RateLimitPerSecond int
	RateLimitBurst     int

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64
}

const envPrefix = "STAYADMIN_"

// Load reads the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Addr:               getenv("ADDR", ":8080"),
		PostgresDSN:        getenv("PG_DSN", ""),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		SnapshotSecret:     getenv("SNAPSHOT_SECRET", ""),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "json"),
		SessionTTL:         12 * time.Hour,
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		MaxBodyBytes:       1 << 20,
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerSecond, err = getint("RATE_LIMIT_PER_SECOND", cfg.RateLimitPerSecond); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = getint("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv(envPrefix + "SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: %sSESSION_TTL: %w", envPrefix, err)
		}
		cfg.SessionTTL = ttl
	}
	if raw := os.Getenv(envPrefix + "MAX_BODY_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: %sMAX_BODY_BYTES: %w", envPrefix, err)
		}
		cfg.MaxBodyBytes = n
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: %sADDR must not be empty", envPrefix)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: %sSESSION_TTL must be positive", envPrefix)
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: rate limit values must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: %sMAX_BODY_BYTES must be positive", envPrefix)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}
