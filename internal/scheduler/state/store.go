package state

import (
	"sync"
	"time"
)

// RecentTick stores the outcome of one evaluation pass.
type RecentTick struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DryRun     bool      `json:"dry_run"`
	Coordinate string    `json:"coordinate"`
	Considered int       `json:"considered"`
	Triggered  int       `json:"triggered"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Store keeps a bounded in-memory window of recent ticks for the ops API.
// Nothing here survives a restart.
type Store struct {
	mu     sync.RWMutex
	limit  int
	recent []RecentTick
}

// NewStore creates a tick store holding at most limit entries.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 32
	}
	return &Store{limit: limit, recent: make([]RecentTick, 0, limit)}
}

// Add registers a tick, evicting the oldest one when full.
func (s *Store) Add(tick RecentTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) == s.limit {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:len(s.recent)-1]
	}
	s.recent = append(s.recent, tick)
}

// Recent returns a snapshot, newest last.
func (s *Store) Recent() []RecentTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecentTick, len(s.recent))
	copy(out, s.recent)
	return out
}

// Last returns the newest tick, if any.
func (s *Store) Last() (RecentTick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recent) == 0 {
		return RecentTick{}, false
	}
	return s.recent[len(s.recent)-1], true
}
