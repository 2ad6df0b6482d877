package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile loads service configuration from a file, auto-detecting the
// format by extension. Supported extensions: .yaml, .yml, .json
//
// The loaded Config is a raw key tree; pass it to ServiceFromConfig to
// resolve the azure: and generation: sections into typed settings.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config. A minimal service file:
//
//	addr: ":4000"
//	azure:
//	  endpoint: https://myresource.openai.azure.com
//	  api_key: secret
//	  deployment: gpt-4o
//	generation:
//	  max_retries: 2
//	  timeout: 60s
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config. It accepts the same key
// tree as FromYAML.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
