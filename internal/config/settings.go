package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/retry"
)

// Role selects the source or target environment settings.
type Role string

const (
	// RoleSource is the environment content is exported from
	RoleSource Role = "source"
	// RoleTarget is the environment content is imported into
	RoleTarget Role = "target"
)

// Environment returns the HTTP client settings for one environment.
// It fails when the environment id or API key is missing.
//
// Config keys: <role>.environment, <role>.api-key, api.*
func Environment(role Role) (remote.HTTPConfig, error) {
	id := strings.TrimSpace(GetString(string(role) + ".environment"))
	key := strings.TrimSpace(GetString(string(role) + ".api-key"))
	if id == "" {
		return remote.HTTPConfig{}, fmt.Errorf("%s environment is not configured (set %s.environment or %s_%s_ENVIRONMENT)",
			role, role, EnvPrefix, strings.ToUpper(string(role)))
	}
	if key == "" {
		return remote.HTTPConfig{}, fmt.Errorf("%s API key is not configured (set %s_%s_API_KEY)",
			role, EnvPrefix, strings.ToUpper(string(role)))
	}
	return remote.HTTPConfig{
		BaseURL:     GetString(KeyAPIBaseURL),
		Environment: id,
		APIKey:      key,
		RateLimit:   getFloat(KeyAPIRateLimit, remote.DefaultRateLimit, 0),
		Burst:       getInt(KeyAPIRateBurst, remote.DefaultBurst, 1),
		Timeout:     getDuration(KeyAPITimeout, remote.DefaultTimeout),
	}, nil
}

// GetImportConcurrency returns the per-stage concurrency, or 5 when unset or
// invalid.
//
// Config key: import.concurrency
func GetImportConcurrency() int {
	return getInt(KeyImportConcurrency, 5, 1)
}

// GetSkipFailedItems reports whether an import continues past failed entities.
//
// Config key: import.skip-failed-items
func GetSkipFailedItems() bool {
	if !IsSet(KeyImportSkipFailedItems) {
		return true
	}
	return GetBool(KeyImportSkipFailedItems)
}

// GetRetryPolicy builds the retry policy from retry.* keys. Invalid values fall
// back to the defaults with a warning.
//
// Config keys: retry.max-attempts, retry.initial-interval, retry.max-interval
func GetRetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = getInt(KeyRetryMaxAttempts, retry.DefaultMaxAttempts, 1)
	p.InitialInterval = getDuration(KeyRetryInitialInterval, retry.DefaultInitialInterval)
	p.MaxInterval = getDuration(KeyRetryMaxInterval, retry.DefaultMaxInterval)
	if p.MaxInterval < p.InitialInterval {
		fmt.Fprintf(os.Stderr, "Warning: %s (%s) is below %s (%s), using %s for both\n",
			KeyRetryMaxInterval, p.MaxInterval, KeyRetryInitialInterval, p.InitialInterval, p.InitialInterval)
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// GetExportLanguages returns the configured export languages, or nil for all.
//
// Config key: export.language
func GetExportLanguages() []string {
	return GetStringSlice(KeyExportLanguage)
}

// GetLockTimeout returns how long an import waits for the target lock.
//
// Config key: lock.timeout
func GetLockTimeout() time.Duration {
	return getDuration(KeyLockTimeout, 30*time.Second)
}

func getInt(key string, def, min int) int {
	raw := strings.TrimSpace(GetString(key))
	if raw == "" {
		return def
	}
	if err := validatePositiveInt(raw); err != nil || GetInt(key) < min {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s %q in config, using default %d\n", key, raw, def)
		return def
	}
	return GetInt(key)
}

func getFloat(key string, def, min float64) float64 {
	raw := strings.TrimSpace(GetString(key))
	if raw == "" {
		return def
	}
	if err := validateNonNegativeFloat(raw); err != nil || GetFloat64(key) < min {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s %q in config, using default %v\n", key, raw, def)
		return def
	}
	return GetFloat64(key)
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetString(key))
	if raw == "" {
		return def
	}
	if err := validateDuration(raw); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s %q in config, using default %s\n", key, raw, def)
		return def
	}
	return GetDuration(key)
}
