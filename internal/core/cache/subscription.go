package cache

// Subscription is one mounted reader of a cache key. Updates are coalesced:
// a slow reader only sees the latest state.
type Subscription struct {
	cache   *Cache
	key     Key
	entry   *entry
	updates chan State
	closed  bool
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key {
	return s.key
}

// Updates delivers entry states. The channel is closed when the subscription
// is closed or the cache is cleared.
func (s *Subscription) Updates() <-chan State {
	return s.updates
}

// State returns the current entry state. A closed subscription reports the
// zero State.
func (s *Subscription) State() State {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	if s.closed {
		return State{}
	}
	return s.entry.state()
}

// Closed reports whether the subscription has been unmounted.
func (s *Subscription) Closed() bool {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.closed
}

// Close unmounts the subscriber. Results of fetches still in flight are no
// longer delivered to it.
func (s *Subscription) Close() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.entry.subs, s)
	close(s.updates)
}

// push replaces any undelivered state with st. Callers hold cache.mu.
func (s *Subscription) push(st State) {
	if s.closed {
		return
	}
	select {
	case s.updates <- st:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}
