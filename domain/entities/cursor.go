package entities

import "time"

// CursorState tracks what a monitoring session has already consumed from the
// transcript store. It must be reset whenever monitoring restarts or the
// room changes: a stale cursor from another room must never suppress data.
type CursorState struct {
	LastSeenText string
	LastSeenAt   time.Time
	PollInterval time.Duration
}

// Reset clears the cursor and restores the initial poll interval.
func (c *CursorState) Reset(initial time.Duration) {
	c.LastSeenText = ""
	c.LastSeenAt = time.Time{}
	c.PollInterval = initial
}

// SeenSet is a bounded set of delta fingerprints used to suppress duplicate
// ingestion. When capacity is exceeded the oldest fingerprint is evicted.
type SeenSet struct {
	capacity int
	order    []string
	members  map[string]struct{}
}

// NewSeenSet creates a SeenSet holding at most capacity fingerprints.
func NewSeenSet(capacity int) *SeenSet {
	if capacity < 1 {
		capacity = 1
	}
	return &SeenSet{
		capacity: capacity,
		members:  make(map[string]struct{}, capacity),
	}
}

// Add inserts the fingerprint and reports whether it was new. Inserting a
// new fingerprint past capacity evicts the oldest one.
func (s *SeenSet) Add(fingerprint string) bool {
	if _, ok := s.members[fingerprint]; ok {
		return false
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	s.members[fingerprint] = struct{}{}
	s.order = append(s.order, fingerprint)
	return true
}

// Contains reports whether the fingerprint is present.
func (s *SeenSet) Contains(fingerprint string) bool {
	_, ok := s.members[fingerprint]
	return ok
}

// Len returns the number of fingerprints currently held.
func (s *SeenSet) Len() int {
	return len(s.order)
}

// Clear empties the set.
func (s *SeenSet) Clear() {
	s.order = s.order[:0]
	s.members = make(map[string]struct{}, s.capacity)
}
