package config

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func decodeYaml(t *testing.T, content []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := yaml.Unmarshal(content, &out); err != nil {
		t.Fatalf("invalid yaml %q: %v", content, err)
	}
	return out
}

func TestSetYamlValueNested(t *testing.T) {
	got, err := setYamlValue([]byte("# ferry settings\nother: value\n"), "import.concurrency", "8")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "# ferry settings") {
		t.Errorf("comment lost: %q", got)
	}
	doc := decodeYaml(t, got)
	if doc["other"] != "value" {
		t.Errorf("other = %v", doc["other"])
	}
	imp, ok := doc["import"].(map[string]any)
	if !ok || imp["concurrency"] != 8 {
		t.Errorf("import = %#v, want concurrency 8", doc["import"])
	}
}

func TestSetYamlValueUpdatesExisting(t *testing.T) {
	content := []byte("import:\n  concurrency: 5\n  skip-failed-items: true\n")
	got, err := setYamlValue(content, "import.skip-failed-items", "FALSE")
	if err != nil {
		t.Fatal(err)
	}
	imp := decodeYaml(t, got)["import"].(map[string]any)
	if imp["skip-failed-items"] != false {
		t.Errorf("skip-failed-items = %v, want false", imp["skip-failed-items"])
	}
	if imp["concurrency"] != 5 {
		t.Errorf("sibling key changed: %v", imp["concurrency"])
	}
}

func TestSetYamlValueFlatKey(t *testing.T) {
	got, err := setYamlValue([]byte("retry.max-attempts: 3\n"), "retry.max-attempts", "5")
	if err != nil {
		t.Fatal(err)
	}
	doc := decodeYaml(t, got)
	if doc["retry.max-attempts"] != 5 {
		t.Errorf("flat key not updated in place: %q", got)
	}
	if _, nested := doc["retry"]; nested {
		t.Errorf("unexpected nested copy: %q", got)
	}
}

func TestSetYamlValueTypes(t *testing.T) {
	tests := []struct {
		value string
		want  any
	}{
		{"250ms", "250ms"},
		{"https://example.com/v2", "https://example.com/v2"},
		{"1.5", 1.5},
		{"en", "en"},
		{"true", true},
	}
	for _, tt := range tests {
		got, err := setYamlValue(nil, "k", tt.value)
		if err != nil {
			t.Fatal(err)
		}
		if v := decodeYaml(t, got)["k"]; v != tt.want {
			t.Errorf("setYamlValue(%q) decoded as %#v, want %#v", tt.value, v, tt.want)
		}
	}
}

func TestSetYamlValueRejectsNonMapping(t *testing.T) {
	if _, err := setYamlValue([]byte("- a\n- b\n"), "k", "v"); err == nil {
		t.Error("expected an error for a list document")
	}
}

func TestSetYamlConfig(t *testing.T) {
	inDir(t, t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}

	if err := SetYamlConfig(KeyImportConcurrency, "7"); err != nil {
		t.Fatalf("SetYamlConfig() error = %v", err)
	}
	if got := GetImportConcurrency(); got != 7 {
		t.Errorf("value not applied to the running config: got %d", got)
	}
	content, err := os.ReadFile(ConfigFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "concurrency: 7") {
		t.Errorf("ferry.yaml = %q", content)
	}

	// A fresh load reads the written file.
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := GetImportConcurrency(); got != 7 {
		t.Errorf("after reload: got %d, want 7", got)
	}
}

func TestSetYamlConfigRejects(t *testing.T) {
	inDir(t, t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		key, value, want string
	}{
		{"nope", "1", "unknown config key"},
		{KeyImportConcurrency, "0", "must be at least 1"},
		{KeyAPITimeout, "forever", "must be a duration"},
		{KeyAPIBaseURL, "ftp://x", "http or https"},
		{KeyTargetAPIKey, "abc", "FERRY_TARGET_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := SetYamlConfig(tt.key, tt.value)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("SetYamlConfig(%q, %q) error = %v, want %q", tt.key, tt.value, err, tt.want)
			}
		})
	}
	if _, err := os.Stat(ConfigFile); !os.IsNotExist(err) {
		t.Error("rejected values must not create ferry.yaml")
	}
}
