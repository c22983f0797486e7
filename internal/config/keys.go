package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config keys
const (
	KeySourceEnvironment = "source.environment"
	KeySourceAPIKey      = "source.api-key"
	KeyTargetEnvironment = "target.environment"
	KeyTargetAPIKey      = "target.api-key"

	KeyAPIBaseURL   = "api.base-url"
	KeyAPIRateLimit = "api.rate-limit"
	KeyAPIRateBurst = "api.rate-burst"
	KeyAPITimeout   = "api.timeout"

	KeyImportConcurrency     = "import.concurrency"
	KeyImportSkipFailedItems = "import.skip-failed-items"

	KeyRetryMaxAttempts     = "retry.max-attempts"
	KeyRetryInitialInterval = "retry.initial-interval"
	KeyRetryMaxInterval     = "retry.max-interval"

	KeyExportLanguage          = "export.language"
	KeyExportIncludeReferenced = "export.include-referenced"

	KeyLockTimeout = "lock.timeout"
)

// Key describes one configuration key.
type Key struct {
	Key         string // Full key name (e.g., "target.api-key")
	Description string // Human-readable description
	EnvVar      string // Environment variable that overrides it
	Secret      bool   // If true, never written to ferry.yaml by `ferry config set`
	Default     string // Default value (empty = no default)
	Validate    func(string) error
}

// Keys lists every key ferry reads.
var Keys = []Key{
	{Key: KeySourceEnvironment, Description: "Source environment id"},
	{Key: KeySourceAPIKey, Description: "Management API key for the source environment", Secret: true},
	{Key: KeyTargetEnvironment, Description: "Target environment id"},
	{Key: KeyTargetAPIKey, Description: "Management API key for the target environment", Secret: true},

	{Key: KeyAPIBaseURL, Description: "Management API base URL", Default: "https://manage.kontent.ai/v2", Validate: validateURL},
	{Key: KeyAPIRateLimit, Description: "Client-side request rate per second (0 disables)", Default: "10", Validate: validateNonNegativeFloat},
	{Key: KeyAPIRateBurst, Description: "Request burst size", Default: "10", Validate: validatePositiveInt},
	{Key: KeyAPITimeout, Description: "Per-request timeout", Default: "60s", Validate: validateDuration},

	{Key: KeyImportConcurrency, Description: "Parallel operations per import stage", Default: "5", Validate: validatePositiveInt},
	{Key: KeyImportSkipFailedItems, Description: "Continue past failed entities instead of stopping after the stage", Default: "true", Validate: validateBool},

	{Key: KeyRetryMaxAttempts, Description: "Attempts per remote call, including the first", Default: "3", Validate: validatePositiveInt},
	{Key: KeyRetryInitialInterval, Description: "Delay before the first retry", Default: "500ms", Validate: validateDuration},
	{Key: KeyRetryMaxInterval, Description: "Upper bound on the delay between retries", Default: "10s", Validate: validateDuration},

	{Key: KeyExportLanguage, Description: "Languages to export, comma separated (default: all)"},
	{Key: KeyExportIncludeReferenced, Description: "Also export items referenced by exported items", Default: "false", Validate: validateBool},

	{Key: KeyLockTimeout, Description: "How long an import waits for another import into the same target", Default: "30s", Validate: validateDuration},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		k := &Keys[i]
		k.EnvVar = EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(k.Key))
		keyMap[k.Key] = k
	}
}

// LookupKey returns the definition of a known key, or nil.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks that key is known and value is acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validation helpers

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %v", f)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 500ms or 10s, got %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http or https URL, got %q", value)
	}
	return nil
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}
