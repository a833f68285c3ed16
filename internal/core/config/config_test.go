package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/speech/live", cfg.API.LivePath)
	assert.Equal(t, 1, cfg.Cache.Retry)
	assert.Equal(t, 5*time.Minute, cfg.Cache.StaleTime)
	assert.Equal(t, "webm", cfg.Capture.Format)
	assert.Equal(t, DefaultCaptureCommand(), cfg.Capture.Command)
	assert.Equal(t, 300*time.Millisecond, cfg.Capture.Startup)
	assert.Equal(t, 2*time.Second, cfg.TUI.RefreshInterval)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "credentials.json"), cfg.CredentialsFile())
	assert.Equal(t, filepath.Join(dataDir, "captures"), cfg.CaptureDir())
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: https://coach.example.com
  timeout: 30s
cache:
  retry: 0
  stale_time: 1m
capture:
  command: ["arecord", "-f", "cd", "{{ .Output }}"]
  format: wav
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://coach.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/speech/live", cfg.API.LivePath, "unset keys keep defaults")
	assert.Equal(t, 0, cfg.Cache.Retry, "explicit zero retry is kept")
	assert.Equal(t, time.Minute, cfg.Cache.StaleTime)
	assert.Equal(t, []string{"arecord", "-f", "cd", "{{ .Output }}"}, cfg.Capture.Command)
	assert.Equal(t, "wav", cfg.Capture.Format)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))

	_, err := Load(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: ftp://coach\ncapture:\n  format: 'we bm'\n"), 0o600))

	_, err := Load(path, t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, hasField(fieldErrs, "api.base_url"))
	assert.True(t, hasField(fieldErrs, "capture.format"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{name: "empty data dir", edit: func(c *Config) { c.DataDir = "" }, field: "data_dir"},
		{name: "no scheme", edit: func(c *Config) { c.API.BaseURL = "coach.example.com" }, field: "api.base_url"},
		{name: "negative timeout", edit: func(c *Config) { c.API.Timeout = -time.Second }, field: "api.timeout"},
		{name: "negative retry", edit: func(c *Config) { c.Cache.Retry = -1 }, field: "cache.retry"},
		{name: "negative stale time", edit: func(c *Config) { c.Cache.StaleTime = -time.Second }, field: "cache.stale_time"},
		{name: "negative startup", edit: func(c *Config) { c.Capture.Startup = -time.Second }, field: "capture.startup"},
		{name: "bad format", edit: func(c *Config) { c.Capture.Format = ".webm" }, field: "capture.format"},
		{name: "fast refresh", edit: func(c *Config) { c.TUI.RefreshInterval = time.Millisecond }, field: "tui.refresh_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.edit(cfg)

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, cfg.Validate(), &fieldErrs)
			assert.True(t, hasField(fieldErrs, tt.field), "expected %s in %v", tt.field, fieldErrs)
		})
	}
}

func TestDefaultCaptureCommand(t *testing.T) {
	argv := DefaultCaptureCommand()
	assert.Equal(t, "ffmpeg", argv[0])
	assert.Equal(t, "{{ .Output }}", argv[len(argv)-1])
}
