package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback backend. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	turns   int
	windows map[int64][]Turn
	touched map[int64]time.Time
}

// NewMemoryStore creates an in-process store capped at turns*2 entries per user
func NewMemoryStore(turns int) *MemoryStore {
	return &MemoryStore{
		turns:   turns,
		windows: make(map[int64][]Turn),
		touched: make(map[int64]time.Time),
	}
}

func (s *MemoryStore) Load(_ context.Context, userID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := s.windows[userID]
	out := make([]Turn, len(window))
	copy(out, window)
	return out
}

func (s *MemoryStore) Append(_ context.Context, userID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := append(s.windows[userID], NewTurn(role, content))
	s.windows[userID] = trim(window, maxEntries(s.turns))
	s.touched[userID] = time.Now()
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, userID)
	delete(s.touched, userID)
}

// Replace overwrites a user's window with the authoritative copy from the
// external cache
func (s *MemoryStore) Replace(userID int64, window []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Turn, len(window))
	copy(copied, window)
	s.windows[userID] = trim(copied, maxEntries(s.turns))
	s.touched[userID] = time.Now()
}

// SweepIdle drops windows untouched for longer than maxIdle and reports how
// many were removed. Mirrors the external cache's TTL for degraded mode.
func (s *MemoryStore) SweepIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for userID, touched := range s.touched {
		if touched.Before(cutoff) {
			delete(s.windows, userID)
			delete(s.touched, userID)
			removed++
		}
	}
	return removed
}

func trim(window []Turn, max int) []Turn {
	if len(window) <= max {
		return window
	}
	return window[len(window)-max:]
}
