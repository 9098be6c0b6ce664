package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRuntimeConfigJSON(t *testing.T) {
	path := writeConfig(t, "sweepcast.json", `{"WINDOW_MS": 120, "AGGREGATE": false, "unused": "x"}`)

	cfg, err := LoadRuntimeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.WindowMS)
	assert.False(t, cfg.Aggregate)
	assert.Equal(t, Default().GridStep, cfg.GridStep)
}

func TestLoadRuntimeConfigYAML(t *testing.T) {
	path := writeConfig(t, "sweepcast.yaml", "ROI_WIDTH: 1800\nROI_DEPTH: 900.5\nSWEEP_SYNC: true\nMIN_HITS: \"4\"\n")

	cfg, err := LoadRuntimeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1800.0, cfg.ROIWidth)
	assert.Equal(t, 900.5, cfg.ROIDepth)
	assert.True(t, cfg.SweepSync)
	assert.Equal(t, 4, cfg.MinHits)
}

func TestLoadRuntimeConfigEmptyYAML(t *testing.T) {
	path := writeConfig(t, "empty.yml", "")
	cfg, err := LoadRuntimeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRuntimeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errText string
	}{
		{"bad extension", "config.txt", `{}`, "extension"},
		{"invalid json", "config.json", `{"WINDOW_MS":`, "failed to parse"},
		{"invalid yaml", "config.yaml", "WINDOW_MS: [1, 2", "failed to parse"},
		{"fails validation", "config.json", `{"SEND_HZ": 0}`, "invalid config"},
		{"uncoercible", "config.yaml", "MIN_HITS: lots\n", "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := LoadRuntimeConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestLoadFileTooLarge(t *testing.T) {
	path := writeConfig(t, "big.json", `{"x": "`+strings.Repeat("a", maxConfigFileSize)+`"}`)
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestDecodeSnapshot(t *testing.T) {
	cfg, err := DecodeSnapshot([]byte(`{"MIN_HITS": 7, "MOTOR_PWM": 800}`))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MinHits)
	assert.Equal(t, 800, cfg.MotorPWM)
	assert.Equal(t, 70, cfg.WindowMS)

	_, err = DecodeSnapshot([]byte(`{"MIN_HITS": 0}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
