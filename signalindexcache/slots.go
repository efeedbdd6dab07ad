package signalindexcache

import "sync"

// Slots holds the two active-cache slots a connection juggles during
// cache rotation. A compact data packet's header carries a 1-bit
// cacheIndex selecting slot 0 or 1; a new UpdateSignalIndexCache replaces
// the slot its header flag indicates, while the *other* slot remains
// valid until an explicit switch. This mirrors observed publisher
// behavior rather than an unversioned single-cache model: a subscriber
// must tolerate data packets referencing either slot at any time.
type Slots struct {
	mu   sync.RWMutex
	caps [2]*Cache
}

// Set installs cache into the given slot (0 or 1).
func (s *Slots) Set(slot int, cache *Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps[slot%2] = cache
}

// Get returns the cache currently installed in the given slot, if any.
func (s *Slots) Get(slot int) (*Cache, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.caps[slot%2]
	return c, c != nil
}
