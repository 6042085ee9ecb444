package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. One mutex serialises every
// check-and-increment, which also gives per-key call ordering.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, key string, cfg Config, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	next, decision := step(entry, ok, cfg, now)
	s.entries[key] = next
	return decision, nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.entries {
		if matchesPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// ClearAll implements Store.
func (s *MemoryStore) ClearAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.entries)
	s.entries = make(map[string]Entry)
	return removed, nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
