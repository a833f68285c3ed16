// Package jsonfile persists local client state as JSON files.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hay-kot/parley/internal/core/auth"
)

// credentialVersion is bumped when the file layout changes. Files written by
// another version are treated as absent so the user signs in again.
const credentialVersion = 1

type credentialFile struct {
	Version    int          `json:"version"`
	Credential *auth.Record `json:"credential,omitempty"`
}

// CredentialStore implements auth.Storage with a single JSON file. An flock(2)
// on a sibling lock file serializes parley processes sharing a data directory.
// The file and its directory are owner-only since they hold a bearer token.
type CredentialStore struct {
	path string
	mu   sync.Mutex
}

// NewCredentialStore returns a store backed by path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Path returns the credential file path.
func (s *CredentialStore) Path() string {
	return s.path
}

// Load returns the stored record or auth.ErrNoCredential.
func (s *CredentialStore) Load(ctx context.Context) (auth.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *auth.Record
	err := s.locked(syscall.LOCK_SH, func() error {
		f, err := s.read()
		rec = f.Credential
		return err
	})
	if err != nil {
		return auth.Record{}, err
	}
	if rec == nil || rec.Token == "" {
		return auth.Record{}, auth.ErrNoCredential
	}
	return *rec, nil
}

// Store replaces the stored record.
func (s *CredentialStore) Store(ctx context.Context, rec auth.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked(syscall.LOCK_EX, func() error {
		return s.write(credentialFile{Version: credentialVersion, Credential: &rec})
	})
}

// Remove deletes the credential file. A missing file is not an error.
func (s *CredentialStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked(syscall.LOCK_EX, func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path, err)
		}
		return nil
	})
}

func (s *CredentialStore) locked(how int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

func (s *CredentialStore) read() (credentialFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || err == nil && len(data) == 0 {
		return credentialFile{}, nil
	}
	if err != nil {
		return credentialFile{}, err
	}

	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return credentialFile{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if f.Version != credentialVersion {
		return credentialFile{}, nil
	}
	return f, nil
}

// write replaces the file atomically with 0600 permissions.
func (s *CredentialStore) write(f credentialFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
