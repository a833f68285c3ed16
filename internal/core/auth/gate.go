package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Purger drops all cached server state. The ServerCache satisfies it.
type Purger interface {
	Clear()
}

// SessionState is derived from the stored credential and never persisted.
type SessionState struct {
	Authenticated bool
	Loading       bool
	Claims        Claims
}

// Gate derives the authenticated state from the TokenStore and re-evaluates
// whenever the credential changes.
type Gate struct {
	tokens TokenStore
	cache  Purger
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	state     SessionState
	listeners map[int]func(SessionState)
	nextID    int
}

// NewGate creates a Gate. The state reports Loading until the first evaluation.
func NewGate(tokens TokenStore, cache Purger, log zerolog.Logger) *Gate {
	return &Gate{
		tokens:    tokens,
		cache:     cache,
		log:       log,
		now:       time.Now,
		ctx:       context.Background(),
		state:     SessionState{Loading: true},
		listeners: make(map[int]func(SessionState)),
	}
}

// SetClock overrides the time source. Intended for tests.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// IsAuthenticated reads and checks the credential without side effects.
func (g *Gate) IsAuthenticated(ctx context.Context) bool {
	_, ok := g.check(ctx)
	return ok
}

// State returns the last evaluated state.
func (g *Gate) State() SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Claims returns the claims of the stored credential, if it decodes.
func (g *Gate) Claims(ctx context.Context) (Claims, error) {
	token, ok := g.tokens.Read(ctx)
	if !ok {
		return Claims{}, ErrNoCredential
	}
	return Decode(token)
}

// Start evaluates once and then on every credential change until the returned
// stop function is called or ctx is done.
func (g *Gate) Start(ctx context.Context) (stop func()) {
	g.mu.Lock()
	g.ctx = ctx
	g.mu.Unlock()

	g.Evaluate(ctx)

	unsub := g.tokens.Subscribe(func(Event) {
		g.mu.Lock()
		evalCtx := g.ctx
		g.mu.Unlock()
		g.Evaluate(evalCtx)
	})

	stopCh := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			close(stopCh)
			unsub()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-stopCh:
		}
	}()

	return stop
}

// Evaluate recomputes the session state. When the credential is missing or no
// longer valid, a still-present credential is cleared and the server cache is
// purged.
func (g *Gate) Evaluate(ctx context.Context) SessionState {
	claims, ok := g.check(ctx)
	next := SessionState{Authenticated: ok, Claims: claims}

	if !ok {
		if _, present := g.tokens.Read(ctx); present {
			g.log.Info().Msg("credential invalid or expired, clearing")
			if err := g.tokens.Clear(ctx); err != nil {
				g.log.Warn().Err(err).Msg("failed to clear credential")
			}
		}
		if g.cache != nil {
			g.cache.Clear()
		}
	}

	g.mu.Lock()
	prev := g.state
	g.state = next
	changed := prev.Authenticated != next.Authenticated || prev.Loading != next.Loading
	var listeners []func(SessionState)
	if changed {
		for _, fn := range g.listeners {
			listeners = append(listeners, fn)
		}
	}
	g.mu.Unlock()

	if changed {
		g.log.Debug().Bool("authenticated", next.Authenticated).Msg("session state changed")
		for _, fn := range listeners {
			fn(next)
		}
	}

	return next
}

// Subscribe registers fn to be called whenever the authenticated state flips.
func (g *Gate) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gate) check(ctx context.Context) (Claims, bool) {
	token, ok := g.tokens.Read(ctx)
	if !ok {
		return Claims{}, false
	}

	claims, err := Decode(token)
	if err != nil {
		g.log.Debug().Err(err).Msg("credential failed to decode")
		return Claims{}, false
	}

	return claims, claims.Valid(g.now())
}
