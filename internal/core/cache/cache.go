// Package cache implements the client-side query cache: server responses kept
// by logical key, shared between subscribers, and refreshed on invalidation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Key names one class of server data.
type Key string

const (
	KeyUser      Key = "user"
	KeyDashboard Key = "dashboard"
	KeyHistory   Key = "history"
)

var (
	// ErrUnknownKey is returned for keys with no registered fetcher.
	ErrUnknownKey = errors.New("no fetcher registered")
	// ErrCleared is returned to callers waiting on a fetch that was started
	// before the cache was cleared.
	ErrCleared = errors.New("cache cleared")
)

// Fetcher loads the value for one key from the server.
type Fetcher func(ctx context.Context) (any, error)

// KeyOption overrides cache options for a single key.
type KeyOption func(*source)

// WithRetry overrides Options.Retry for one key.
func WithRetry(n int) KeyOption {
	return func(s *source) { s.retry = max(n, 0) }
}

// WithStaleTime overrides Options.StaleTime for one key.
func WithStaleTime(d time.Duration) KeyOption {
	return func(s *source) { s.staleTime = d }
}

type source struct {
	fetch     Fetcher
	retry     int
	staleTime time.Duration
}

// Options configures a Cache.
type Options struct {
	// Retry is the number of additional attempts after a failed fetch.
	Retry int
	// StaleTime is how long a fetched value is served without refetching.
	// Zero keeps values fresh until they are invalidated.
	StaleTime time.Duration
	// Timeout bounds a single fetch including retries. Zero means no limit.
	Timeout time.Duration
	// ShouldRetry reports whether err is worth another attempt. Nil retries
	// everything except context cancellation.
	ShouldRetry func(err error) bool
}

// State is a snapshot of one cache entry as seen by a subscriber.
type State struct {
	Data       any
	Err        error
	IsLoading  bool // fetching with no value yet
	IsFetching bool
	Stale      bool
	UpdatedAt  time.Time
}

type entry struct {
	data      any
	hasData   bool
	err       error
	stale     bool
	fetching  bool
	pending   bool
	wait      chan struct{}
	updatedAt time.Time
	subs      map[*Subscription]struct{}
}

func (e *entry) state() State {
	return State{
		Data:       e.data,
		Err:        e.err,
		IsLoading:  e.fetching && !e.hasData,
		IsFetching: e.fetching,
		Stale:      e.stale,
		UpdatedAt:  e.updatedAt,
	}
}

// Cache holds server state by key. At most one fetch per key is in flight at
// a time within a generation; invalidations that land during a fetch collapse
// into a single follow-up fetch. Clear starts a new generation, so a fetch
// begun before it may still be running alongside the first fetch after it;
// its result is discarded. It is the only component that mutates cache
// entries.
type Cache struct {
	log  zerolog.Logger
	opts Options
	now  func() time.Time
	ctx  context.Context

	group singleflight.Group
	wg    sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	fetchers map[Key]source
	entries  map[Key]*entry
}

// New creates an empty Cache.
func New(log zerolog.Logger, opts Options) *Cache {
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Cache{
		log:      log,
		opts:     opts,
		now:      time.Now,
		ctx:      context.Background(),
		fetchers: make(map[Key]source),
		entries:  make(map[Key]*entry),
	}
}

// Register sets the fetcher for key, replacing any previous one.
func (c *Cache) Register(key Key, fetch Fetcher, opts ...KeyOption) {
	src := source{fetch: fetch, retry: c.opts.Retry, staleTime: c.opts.StaleTime}
	for _, opt := range opts {
		opt(&src)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = src
}

// Subscribe mounts a subscriber on key. The first subscriber, or any
// subscriber arriving while the entry is missing or stale, triggers a fetch.
// Concurrent subscribers share the in-flight fetch.
func (c *Cache) Subscribe(key Key) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	sub := &Subscription{
		cache:   c,
		key:     key,
		entry:   e,
		updates: make(chan State, 1),
	}
	e.subs[sub] = struct{}{}

	if !e.fetching && (!e.hasData || c.staleLocked(key, e)) {
		c.startLocked(key, e)
	}

	sub.push(e.state())
	return sub
}

// Query returns the value for key, fetching it when missing or stale and
// joining a fetch already in flight. When the fetch fails the previous value,
// if any, is returned alongside the error.
func (c *Cache) Query(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)

	if !e.fetching && e.hasData && !c.staleLocked(key, e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}

	if !e.fetching {
		c.startLocked(key, e)
		if !e.fetching {
			err := e.err
			c.mu.Unlock()
			return nil, err
		}
		c.notifyLocked(e)
	}

	wait := e.wait
	c.mu.Unlock()

	select {
	case <-wait:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return e.data, e.err
}

// Invalidate marks key stale. A refetch is scheduled only when a subscriber
// is mounted; otherwise the next subscriber or query fetches. Other keys are
// not affected.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}

	e.stale = true

	switch {
	case e.fetching:
		e.pending = true
	case len(e.subs) > 0:
		c.startLocked(key, e)
	}

	c.log.Debug().Str("key", string(key)).Int("subscribers", len(e.subs)).Msg("invalidated")
	c.notifyLocked(e)
}

// Clear drops every entry and closes all subscriptions. Results of fetches
// still in flight are discarded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	for _, e := range c.entries {
		for sub := range e.subs {
			sub.closeLocked()
		}
	}
	c.entries = make(map[Key]*entry)

	c.log.Debug().Uint64("generation", c.gen).Msg("cache cleared")
}

// Peek returns the current state of key without triggering a fetch.
func (c *Cache) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return State{}, false
	}
	return e.state(), true
}

// Wait blocks until all background fetches have completed.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[*Subscription]struct{})}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) staleLocked(key Key, e *entry) bool {
	if e.stale {
		return true
	}
	staleTime := c.fetchers[key].staleTime
	return staleTime > 0 && c.now().Sub(e.updatedAt) > staleTime
}

func (c *Cache) startLocked(key Key, e *entry) {
	src, ok := c.fetchers[key]
	if !ok {
		e.err = fmt.Errorf("%w: %s", ErrUnknownKey, key)
		return
	}

	wait := make(chan struct{})
	e.fetching = true
	e.pending = false
	e.wait = wait

	gen := c.gen
	ch := c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		return c.fetch(key, src)
	})

	c.log.Debug().Str("key", string(key)).Msg("fetch started")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := <-ch
		c.complete(key, e, gen, wait, res)
	}()
}

func (c *Cache) fetch(key Key, src source) (any, error) {
	ctx := c.ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var err error
	for attempt := 0; attempt <= src.retry; attempt++ {
		var v any
		v, err = src.fetch(ctx)
		if err == nil {
			return v, nil
		}

		if attempt == src.retry || !c.retryable(err) {
			break
		}

		c.log.Debug().Err(err).Str("key", string(key)).Int("attempt", attempt+1).Msg("fetch failed, retrying")
	}

	return nil, err
}

func (c *Cache) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.opts.ShouldRetry != nil {
		return c.opts.ShouldRetry(err)
	}
	return true
}

func (c *Cache) complete(key Key, e *entry, gen uint64, wait chan struct{}, res singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(wait)

	e.fetching = false

	if gen != c.gen {
		e.err = ErrCleared
		if res.Err != nil {
			e.err = fmt.Errorf("%w: %w", ErrCleared, res.Err)
		}
		return
	}

	if res.Err != nil {
		e.err = res.Err
		c.log.Warn().Err(res.Err).Str("key", string(key)).Msg("fetch failed")
	} else {
		e.data = res.Val
		e.hasData = true
		e.err = nil
		e.updatedAt = c.now()
		e.stale = e.pending
	}

	if e.pending && len(e.subs) > 0 {
		c.startLocked(key, e)
	}

	c.notifyLocked(e)
}

func (c *Cache) notifyLocked(e *entry) {
	st := e.state()
	for sub := range e.subs {
		sub.push(st)
	}
}

// Get is a typed Query.
func Get[T any](ctx context.Context, c *Cache, key Key) (T, error) {
	var zero T

	v, err := c.Query(ctx, key)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache %s: unexpected value type %T", key, v)
	}
	return t, nil
}
