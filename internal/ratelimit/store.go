package ratelimit

import (
	"context"
	"time"
)

// Entry is the per-key counter state.
type Entry struct {
	Count        int       `json:"count"`
	ResetAt      time.Time `json:"resetAt"`
	LockoutUntil time.Time `json:"lockoutUntil,omitempty"`
}

// Expired reports whether both the window and any lockout are over at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ResetAt) && !now.Before(e.LockoutUntil)
}

// Store holds counters. Consume must run the whole check-and-increment for one key
// atomically; concurrent callers for the same key must never lose an update.
type Store interface {
	Consume(ctx context.Context, key string, cfg Config, now time.Time) (Decision, error)
	Peek(ctx context.Context, key string) (Entry, bool, error)
	Clear(ctx context.Context, prefix string) (int, error)
	ClearAll(ctx context.Context) (int, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// step advances one entry by one attempt. ok is false when the key has no entry.
func step(e Entry, ok bool, cfg Config, now time.Time) (Entry, Decision) {
	// Lockout short-circuits before any counting.
	if ok && now.Before(e.LockoutUntil) {
		return e, rejected(e.LockoutUntil.Sub(now), true, cfg)
	}
	if !ok || !now.Before(e.ResetAt) {
		return Entry{Count: 1, ResetAt: now.Add(cfg.Window)}, allowed()
	}
	e.Count++
	if e.Count <= cfg.MaxAttempts {
		return e, allowed()
	}
	if cfg.LockoutDuration > 0 {
		e.LockoutUntil = now.Add(cfg.LockoutDuration)
		return e, rejected(cfg.LockoutDuration, true, cfg)
	}
	return e, rejected(e.ResetAt.Sub(now), false, cfg)
}
