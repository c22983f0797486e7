package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/steveyegge/ferry/internal/retry"
)

// inDir runs the test from dir and restores the working directory afterwards.
func inDir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
}

func TestDefaults(t *testing.T) {
	inDir(t, t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{KeyAPIBaseURL, "https://manage.kontent.ai/v2", func(k string) interface{} { return GetString(k) }},
		{KeyImportConcurrency, 5, func(k string) interface{} { return GetInt(k) }},
		{KeyImportSkipFailedItems, true, func(k string) interface{} { return GetBool(k) }},
		{KeyRetryMaxAttempts, 3, func(k string) interface{} { return GetInt(k) }},
		{KeyRetryInitialInterval, 500 * time.Millisecond, func(k string) interface{} { return GetDuration(k) }},
		{KeyAPITimeout, 60 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{KeyExportIncludeReferenced, false, func(k string) interface{} { return GetBool(k) }},
		{KeyTargetEnvironment, "", func(k string) interface{} { return GetString(k) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"FERRY_TARGET_API_KEY", KeyTargetAPIKey, "secret", "secret", func(k string) interface{} { return GetString(k) }},
		{"FERRY_IMPORT_CONCURRENCY", KeyImportConcurrency, "12", 12, func(k string) interface{} { return GetInt(k) }},
		{"FERRY_IMPORT_SKIP_FAILED_ITEMS", KeyImportSkipFailedItems, "false", false, func(k string) interface{} { return GetBool(k) }},
		{"FERRY_RETRY_MAX_INTERVAL", KeyRetryMaxInterval, "2s", 2 * time.Second, func(k string) interface{} { return GetDuration(k) }},
	}
	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
target:
  environment: env-123
import:
  concurrency: 8
retry:
  max-attempts: 6
export:
  language: [en, de]
`
	if err := os.WriteFile(filepath.Join(dir, "ferry.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	inDir(t, dir)
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := GetString(KeyTargetEnvironment); got != "env-123" {
		t.Errorf("target.environment = %q, want env-123", got)
	}
	if got := GetImportConcurrency(); got != 8 {
		t.Errorf("GetImportConcurrency() = %d, want 8", got)
	}
	if got := GetRetryPolicy().MaxAttempts; got != 6 {
		t.Errorf("MaxAttempts = %d, want 6", got)
	}
	if got := GetExportLanguages(); strings.Join(got, ",") != "en,de" {
		t.Errorf("GetExportLanguages() = %v, want [en de]", got)
	}
	if !strings.HasSuffix(ConfigFileUsed(), "ferry.yaml") {
		t.Errorf("ConfigFileUsed() = %q", ConfigFileUsed())
	}

	// Environment beats the file.
	t.Setenv("FERRY_IMPORT_CONCURRENCY", "2")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := GetImportConcurrency(); got != 2 {
		t.Errorf("GetImportConcurrency() with env = %d, want 2", got)
	}
}

func TestConfigFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ferry.yaml"), []byte("import: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	inDir(t, dir)
	if err := Initialize(); err == nil {
		t.Fatal("expected an error for invalid yaml")
	}
}

func TestBindFlag(t *testing.T) {
	inDir(t, t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("concurrency", 5, "")
	if err := BindFlag(KeyImportConcurrency, fs.Lookup("concurrency")); err != nil {
		t.Fatal(err)
	}
	if got := GetImportConcurrency(); got != 5 {
		t.Errorf("unset flag: got %d, want 5", got)
	}
	if err := fs.Parse([]string{"--concurrency", "9"}); err != nil {
		t.Fatal(err)
	}
	if got := GetImportConcurrency(); got != 9 {
		t.Errorf("set flag: got %d, want 9", got)
	}
}

func TestEnvironment(t *testing.T) {
	inDir(t, t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if _, err := Environment(RoleTarget); err == nil || !strings.Contains(err.Error(), "target environment is not configured") {
		t.Fatalf("expected missing environment error, got %v", err)
	}

	t.Setenv("FERRY_TARGET_ENVIRONMENT", "env-1")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if _, err := Environment(RoleTarget); err == nil || !strings.Contains(err.Error(), "FERRY_TARGET_API_KEY") {
		t.Fatalf("expected missing api key error, got %v", err)
	}

	t.Setenv("FERRY_TARGET_API_KEY", "key-1")
	t.Setenv("FERRY_API_RATE_LIMIT", "2.5")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	cfg, err := Environment(RoleTarget)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Environment != "env-1" || cfg.APIKey != "key-1" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.RateLimit != 2.5 || cfg.Burst != 10 || cfg.Timeout != 60*time.Second {
		t.Errorf("unexpected limits %+v", cfg)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("FERRY_IMPORT_CONCURRENCY", "lots")
	t.Setenv("FERRY_RETRY_INITIAL_INTERVAL", "soon")
	t.Setenv("FERRY_RETRY_MAX_INTERVAL", "1ms")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := GetImportConcurrency(); got != 5 {
		t.Errorf("GetImportConcurrency() = %d, want default 5", got)
	}
	p := GetRetryPolicy()
	if p.InitialInterval != retry.DefaultInitialInterval {
		t.Errorf("InitialInterval = %s, want default", p.InitialInterval)
	}
	if p.MaxInterval != p.InitialInterval {
		t.Errorf("MaxInterval = %s, want clamped to %s", p.MaxInterval, p.InitialInterval)
	}
}

func TestAllSettingsMasksSecrets(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("FERRY_SOURCE_API_KEY", "very-secret")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	all := AllSettings()
	if all[KeySourceAPIKey] != "********" {
		t.Errorf("source.api-key = %v, want masked", all[KeySourceAPIKey])
	}
	if all[KeyTargetAPIKey] != "" {
		t.Errorf("target.api-key = %v, want empty", all[KeyTargetAPIKey])
	}
	if all[KeyImportConcurrency] != "5" {
		t.Errorf("import.concurrency = %v, want 5", all[KeyImportConcurrency])
	}
}

func TestGettersBeforeInitialize(t *testing.T) {
	ResetForTesting()
	defer func() { _ = Initialize() }()
	if GetString(KeyAPIBaseURL) != "" || GetInt(KeyImportConcurrency) != 0 || GetBool(KeyImportSkipFailedItems) {
		t.Error("getters should return zero values before Initialize")
	}
	if !GetSkipFailedItems() {
		t.Error("GetSkipFailedItems() should default to true")
	}
}
