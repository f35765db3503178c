package resilience

import "sync"

// DefaultSlots is the limit used when NewSlots is given a non-positive one.
const DefaultSlots = 3

// Slots is a non-blocking in-flight limiter. A caller that cannot take a
// slot moves on instead of waiting.
type Slots struct {
	mu       sync.Mutex
	limit    int
	inUse    int
	peak     int
	rejected int64
}

// SlotStats is a point-in-time view of a Slots.
type SlotStats struct {
	Limit    int
	InUse    int
	Peak     int   // highest InUse seen
	Rejected int64 // failed TryAcquire calls
}

// NewSlots creates a limiter with limit slots.
func NewSlots(limit int) *Slots {
	if limit <= 0 {
		limit = DefaultSlots
	}
	return &Slots{limit: limit}
}

// TryAcquire takes a slot if one is free.
func (s *Slots) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inUse >= s.limit {
		s.rejected++
		return false
	}
	s.inUse++
	s.peak = max(s.peak, s.inUse)
	return true
}

// Release returns a slot. Releasing more than was acquired is a no-op.
func (s *Slots) Release() {
	s.mu.Lock()
	if s.inUse > 0 {
		s.inUse--
	}
	s.mu.Unlock()
}

// Available returns the number of free slots.
func (s *Slots) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit - s.inUse
}

// Stats returns the current counters.
func (s *Slots) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{Limit: s.limit, InUse: s.inUse, Peak: s.peak, Rejected: s.rejected}
}
