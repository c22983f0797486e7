package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the file `ferry config set` writes, in the working directory.
const ConfigFile = ConfigName + ".yaml"

// SetYamlConfig sets a key in ferry.yaml, creating the file when needed. Known
// keys are validated; secrets are refused so API keys stay in the environment.
func SetYamlConfig(key, value string) error {
	if err := ValidateKey(key, value); err != nil {
		return err
	}
	if k := LookupKey(key); k.Secret {
		return fmt.Errorf("key %q is a secret and must not be stored in %s (use %s instead)", key, ConfigFile, k.EnvVar)
	}

	path := ConfigFileUsed()
	if path == "" {
		path = ConfigFile
	}
	content, err := os.ReadFile(path) //nolint:gosec // path is the loaded config file or ./ferry.yaml
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	updated, err := setYamlValue(content, key, value)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	if err := os.WriteFile(path, updated, 0600); err != nil { //nolint:gosec // see above
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	Set(key, value)
	return nil
}

// setYamlValue sets a dotted key in a YAML document and re-encodes it,
// keeping comments and unrelated keys. A key already written flat
// ("import.concurrency: 4") is updated where it is; otherwise the value goes
// into nested mappings, which are created as needed.
func setYamlValue(content []byte, key, value string) ([]byte, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(content)) > 0 {
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, err
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level is not a mapping")
	}

	scalar := scalarNode(value)
	if v := mappingValue(root, key); v != nil {
		setScalar(v, scalar)
	} else {
		m := root
		parts := strings.Split(key, ".")
		for _, part := range parts[:len(parts)-1] {
			next := mappingValue(m, part)
			if next == nil || next.Kind != yaml.MappingNode {
				next = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
				putMappingValue(m, part, next)
			}
			m = next
		}
		putMappingValue(m, parts[len(parts)-1], scalar)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func putMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
}

// setScalar replaces v in place so its comments stay attached.
func setScalar(v, scalar *yaml.Node) {
	v.Kind = scalar.Kind
	v.Tag = scalar.Tag
	v.Value = scalar.Value
	v.Style = 0
	v.Content = nil
}

// scalarNode types a command-line value the way a person would have written
// it in the file.
func scalarNode(value string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
	if lower := strings.ToLower(value); lower == "true" || lower == "false" {
		n.Tag, n.Value = "!!bool", lower
	} else if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		n.Tag = "!!int"
	} else if _, err := strconv.ParseFloat(value, 64); err == nil {
		n.Tag = "!!float"
	}
	return n
}
