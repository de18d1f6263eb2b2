package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the device read-path caching layer.
type Config struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// ResolveTTL is the TTL for /File/GetVer and /File/GetVerAndDate
	// responses. Kept short: a publish should reach polling devices within
	// one TTL even if the invalidation hook is missed.
	ResolveTTL time.Duration

	// PayloadTTL is the TTL for /File/Down responses. Versions are
	// immutable, so this can be generous; it mainly bounds memory.
	PayloadTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		ResolveTTL: 15 * time.Second,
		PayloadTTL: 5 * time.Minute,
		MaxSize:    1000,
	}
}

// ConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - FLEET_CACHE_ENABLED: "true" or "false" (default: "true")
//   - FLEET_CACHE_RESOLVE_TTL: duration in seconds (default: 15)
//   - FLEET_CACHE_PAYLOAD_TTL: duration in seconds (default: 300)
//   - FLEET_CACHE_MAX_SIZE: max entries per cache (default: 1000)
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("FLEET_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("FLEET_CACHE_RESOLVE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ResolveTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("FLEET_CACHE_PAYLOAD_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.PayloadTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("FLEET_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}
