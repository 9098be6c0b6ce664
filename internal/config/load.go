package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 1 << 20

// LoadFile reads a configuration file and returns its top-level key/value
// pairs. Only .json, .yaml and .yml files up to 1MB are accepted.
func LoadFile(path string) (map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if ext == ".json" {
		values, err := ParseUpdate(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return values, nil
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return values, nil
}

// LoadRuntimeConfig overlays the file at path on Default. Missing keys keep
// their defaults.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	values, err := LoadFile(path)
	if err != nil {
		return RuntimeConfig{}, err
	}
	cfg, _, err := Default().WithUpdates(values)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeSnapshot parses a full configuration previously produced by
// json.Marshal. Missing keys keep their defaults.
func DecodeSnapshot(data []byte) (RuntimeConfig, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("failed to decode config snapshot: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RuntimeConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
