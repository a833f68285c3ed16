package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/hay-kot/parley/internal/api"
	"github.com/hay-kot/parley/internal/coach"
	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/printer"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string
	APIURL     string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Service wires the session, cache and backend client
	Service *coach.Service
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "parley", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "parley")
}

// hintAuth points the user at login when err means the session is gone.
func hintAuth(err error) error {
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, auth.ErrNoCredential) {
		return printer.WithHint(err, "run 'parley login' to sign in")
	}
	return err
}

// requireSession fails fast when no valid credential is stored. An expired
// credential is cleared as a side effect.
func requireSession(ctx context.Context, f *Flags) error {
	if !f.Service.Gate().Evaluate(ctx).Authenticated {
		return hintAuth(auth.ErrNoCredential)
	}
	return nil
}
