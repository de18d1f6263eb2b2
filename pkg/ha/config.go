// Package ha provides the primitives needed to run the registry server with
// multiple replicas against one database, currently migration locking.
package ha

import (
	"os"
	"strings"
)

// Config holds configuration for multi-replica operation.
type Config struct {
	// MigrationLockEnabled controls whether database migration locking is
	// used to prevent concurrent schema changes from multiple replicas.
	MigrationLockEnabled bool

	// Identity is the unique identity of this instance, recorded on the
	// lock row. Defaults to POD_NAME or the hostname.
	Identity string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MigrationLockEnabled: true,
		Identity:             defaultIdentity(),
	}
}

// ConfigFromEnv reads HA configuration from environment variables, falling
// back to defaults for any unset variable.
//
// Environment variables:
//   - FLEET_MIGRATION_LOCK_ENABLED: "true" or "false" (default: "true")
//   - POD_NAME: instance identity
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("FLEET_MIGRATION_LOCK_ENABLED"); v != "" {
		cfg.MigrationLockEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("POD_NAME"); v != "" {
		cfg.Identity = v
	}

	return cfg
}

func defaultIdentity() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
