// Package config handles configuration loading and validation for parley.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Cache   CacheConfig   `yaml:"cache"`
	Capture CaptureConfig `yaml:"capture"`
	TUI     TUIConfig     `yaml:"tui"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// APIConfig locates the speech-coaching backend.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	LivePath string        `yaml:"live_path"`
}

// CacheConfig tunes the server-state cache.
type CacheConfig struct {
	// Retry is the number of extra attempts for a failed fetch.
	Retry     int           `yaml:"retry"`
	StaleTime time.Duration `yaml:"stale_time"`
}

// CaptureConfig defines how audio is recorded.
type CaptureConfig struct {
	// Command is an argv template. {{ .Output }} is the file the command must
	// write; {{ .Format }} is the configured format.
	Command []string      `yaml:"command"`
	Format  string        `yaml:"format"`
	Grace   time.Duration `yaml:"grace"`
	// Startup is how long a capture must keep running before it counts as
	// started.
	Startup time.Duration `yaml:"startup"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// DefaultCaptureCommand returns the ffmpeg invocation for the current
// platform's default microphone.
func DefaultCaptureCommand() []string {
	input := []string{"-f", "pulse", "-i", "default"}
	switch runtime.GOOS {
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":0"}
	case "windows":
		input = []string{"-f", "dshow", "-i", "audio=default"}
	}

	argv := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	argv = append(argv, input...)
	return append(argv, "-y", "{{ .Output }}")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:  "http://localhost:8000",
			Timeout:  10 * time.Second,
			LivePath: "/speech/live",
		},
		Cache: CacheConfig{
			Retry:     1,
			StaleTime: 5 * time.Minute,
		},
		Capture: CaptureConfig{
			Command: DefaultCaptureCommand(),
			Format:  "webm",
			Grace:   5 * time.Second,
			Startup: 300 * time.Millisecond,
		},
		TUI: TUIConfig{
			RefreshInterval: 2 * time.Second,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills options whose zero value is never valid.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.API.LivePath == "" {
		c.API.LivePath = defaults.API.LivePath
	}
	if len(c.Capture.Command) == 0 {
		c.Capture.Command = defaults.Capture.Command
	}
	if c.Capture.Format == "" {
		c.Capture.Format = defaults.Capture.Format
	}
	if c.Capture.Grace == 0 {
		c.Capture.Grace = defaults.Capture.Grace
	}
	if c.Capture.Startup == 0 {
		c.Capture.Startup = defaults.Capture.Startup
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = defaults.TUI.RefreshInterval
	}
}

var formatRe = regexp.MustCompile(`^[a-z0-9]+$`)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil {
		errs = errs.Append("api.base_url", err)
	} else if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		errs = errs.Append("api.base_url", fmt.Errorf("must be an http(s) URL, got %q", c.API.BaseURL))
	}

	if c.API.Timeout < 0 {
		errs = errs.Append("api.timeout", fmt.Errorf("must not be negative"))
	}

	if c.Cache.Retry < 0 {
		errs = errs.Append("cache.retry", fmt.Errorf("must be at least 0"))
	}

	if c.Cache.StaleTime < 0 {
		errs = errs.Append("cache.stale_time", fmt.Errorf("must not be negative"))
	}

	if !formatRe.MatchString(c.Capture.Format) {
		errs = errs.Append("capture.format", fmt.Errorf("must be a file extension such as webm or wav, got %q", c.Capture.Format))
	}

	if c.Capture.Startup < 0 {
		errs = errs.Append("capture.startup", fmt.Errorf("must not be negative"))
	}

	if c.TUI.RefreshInterval < 100*time.Millisecond {
		errs = errs.Append("tui.refresh_interval", fmt.Errorf("must be at least 100ms"))
	}

	return errs.ToError()
}

// CredentialsFile returns the path of the stored credential.
func (c *Config) CredentialsFile() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// CaptureDir returns the directory for in-progress recordings.
func (c *Config) CaptureDir() string {
	return filepath.Join(c.DataDir, "captures")
}
