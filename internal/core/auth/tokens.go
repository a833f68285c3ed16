package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventKind describes how the stored credential changed.
type EventKind string

const (
	EventSaved   EventKind = "saved"
	EventCleared EventKind = "cleared"
)

// Event is broadcast to subscribers after every credential mutation.
type Event struct {
	Kind EventKind
	At   time.Time
}

// Listener receives credential change events.
type Listener func(Event)

// TokenStore persists, reads and clears the single bearer credential.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Read(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
	Subscribe(fn Listener) (unsubscribe func())
}

// Tokens implements TokenStore on top of a Storage. It is the only component
// that mutates the credential.
type Tokens struct {
	store Storage
	log   zerolog.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	lastSeen  string
}

// NewTokens creates a TokenStore backed by store.
func NewTokens(store Storage, log zerolog.Logger) *Tokens {
	return &Tokens{
		store:     store,
		log:       log,
		listeners: make(map[int]Listener),
	}
}

// Save persists token and notifies subscribers.
func (t *Tokens) Save(ctx context.Context, token string) error {
	if err := t.store.Store(ctx, NewRecord(token, time.Now())); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	t.log.Debug().Msg("credential saved")
	t.remember(token)
	t.publish(EventSaved)
	return nil
}

// Read returns the stored credential. Storage failures are treated as absent.
func (t *Tokens) Read(ctx context.Context) (string, bool) {
	rec, err := t.Stored(ctx)
	if err != nil || rec.Token == "" {
		return "", false
	}
	return rec.Token, true
}

// Stored returns the full persisted record. Storage failures are logged and
// reported as ErrNoCredential.
func (t *Tokens) Stored(ctx context.Context) (Record, error) {
	rec, err := t.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			t.log.Warn().Err(err).Msg("credential storage unavailable")
		}
		return Record{}, ErrNoCredential
	}
	return rec, nil
}

// Clear removes the credential and notifies subscribers. Clearing an absent
// credential still broadcasts.
func (t *Tokens) Clear(ctx context.Context) error {
	if err := t.store.Remove(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	t.log.Debug().Msg("credential cleared")
	t.remember("")
	t.publish(EventCleared)
	return nil
}

// Subscribe registers fn for change events. Listeners run synchronously on the
// goroutine that performed the mutation, in subscription order.
func (t *Tokens) Subscribe(fn Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Refresh re-reads storage and broadcasts when the credential was changed by
// another process sharing the data directory. It reports whether an event was
// published.
func (t *Tokens) Refresh(ctx context.Context) bool {
	token, _ := t.Read(ctx)

	t.mu.Lock()
	changed := token != t.lastSeen
	t.lastSeen = token
	t.mu.Unlock()

	if !changed {
		return false
	}

	kind := EventSaved
	if token == "" {
		kind = EventCleared
	}

	t.log.Debug().Str("kind", string(kind)).Msg("credential changed externally")
	t.publish(kind)
	return true
}

func (t *Tokens) remember(token string) {
	t.mu.Lock()
	t.lastSeen = token
	t.mu.Unlock()
}

func (t *Tokens) publish(kind EventKind) {
	t.mu.Lock()
	ids := make([]int, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, t.listeners[id])
	}
	t.mu.Unlock()

	ev := Event{Kind: kind, At: time.Now()}
	for _, fn := range listeners {
		fn(ev)
	}
}
