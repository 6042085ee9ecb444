package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. Tests use it in place of PGStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	failErr error
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Fail makes every following Insert return err. nil restores normal operation.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, e Entry) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return Record{}, s.failErr
	}
	rec := Record{
		ID:         uuid.NewString(),
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Details:    cloneDetails(e.Details),
		Severity:   e.Severity,
		Category:   e.Category,
		CreatedAt:  s.now().UTC(),
	}
	s.records = append(s.records, rec)
	return rec, nil
}

// Records returns every record in insertion order.
func (s *MemoryStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Search mirrors PGStore.Search.
func (s *MemoryStore) Search(_ context.Context, f Filters, limit, offset int) ([]Record, error) {
	s.mu.RLock()
	matched := make([]Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if rec := s.records[i]; matches(rec, f) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit <= 0 {
		return matched, nil
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matches(rec Record, f Filters) bool {
	if !f.From.IsZero() && rec.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !rec.CreatedAt.Before(f.To) {
		return false
	}
	if actor := strings.TrimSpace(f.ActorID); actor != "" && rec.ActorID != actor {
		return false
	}
	if action := strings.TrimSpace(f.Action); action != "" && !strings.HasPrefix(rec.Action, action) {
		return false
	}
	if f.Severity != "" && rec.Severity != f.Severity {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	return true
}

func cloneDetails(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
