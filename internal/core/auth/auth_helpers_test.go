package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// memStore implements Storage in memory for testing.
type memStore struct {
	mu      sync.Mutex
	rec     *Record
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) Load(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Record{}, m.loadErr
	}
	if m.rec == nil {
		return Record{}, ErrNoCredential
	}
	return *m.rec, nil
}

func (m *memStore) Store(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
	return nil
}

func (m *memStore) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}

var errStorageDown = errors.New("storage unavailable")

// purgeCounter implements Purger.
type purgeCounter struct {
	mu    sync.Mutex
	count int
}

func (p *purgeCounter) Clear() {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
}

func (p *purgeCounter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// signedToken builds a header.claims.signature token with the given claims.
func signedToken(claims map[string]any) string {
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".c2lnbmF0dXJl"
}

func tokenExpiringAt(t time.Time) string {
	return signedToken(map[string]any{"sub": "alice", "exp": t.Unix()})
}
