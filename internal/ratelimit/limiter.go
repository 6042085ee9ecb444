package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Outcome labels reported to the Observer.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeLockout  = "lockout"
	OutcomeError    = "error"
)

// Observer receives one call per decision.
type Observer interface {
	ObserveRateLimit(preset, outcome string)
}

// Limiter applies Configs against a Store using an injected clock.
type Limiter struct {
	store    Store
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver reports every decision, typically to Prometheus.
func WithObserver(o Observer) Option {
	return func(l *Limiter) {
		l.observer = o
	}
}

// New constructs a Limiter. A nil store falls back to a fresh MemoryStore.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one attempt for key under cfg. name labels the decision for metrics.
// An invalid cfg panics. When the store fails the attempt is allowed and the failure
// is logged, so a Redis outage degrades to no limiting rather than to no service.
func (l *Limiter) Allow(ctx context.Context, name, key string, cfg Config) Decision {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("ratelimit: invalid config %q: %v", name, err))
	}
	decision, err := l.store.Consume(ctx, key, cfg, l.now())
	if err != nil {
		l.logger.Error("rate limit store unavailable, allowing request",
			slog.String("preset", name),
			slog.Any("error", err),
		)
		l.observe(name, OutcomeError)
		return allowed()
	}
	switch {
	case decision.Allowed:
		l.observe(name, OutcomeAllowed)
	case decision.Lockout:
		l.observe(name, OutcomeLockout)
	default:
		l.observe(name, OutcomeRejected)
	}
	return decision
}

// Peek returns the entry stored for key without consuming an attempt.
func (l *Limiter) Peek(ctx context.Context, key string) (Entry, bool, error) {
	return l.store.Peek(ctx, key)
}

// Reset removes every entry for prefix (the key itself or prefix:*).
func (l *Limiter) Reset(ctx context.Context, prefix string) (int, error) {
	return l.store.Clear(ctx, prefix)
}

// ResetAll removes every entry.
func (l *Limiter) ResetAll(ctx context.Context) (int, error) {
	return l.store.ClearAll(ctx)
}

// Run sweeps expired entries every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := l.store.Sweep(ctx, l.now())
			if err != nil {
				l.logger.Warn("rate limit sweep", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				l.logger.Debug("rate limit sweep", slog.Int("removed", removed))
			}
		}
	}
}

func (l *Limiter) observe(name, outcome string) {
	if l.observer != nil {
		l.observer.ObserveRateLimit(name, outcome)
	}
}
