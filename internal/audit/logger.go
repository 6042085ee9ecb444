package audit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Write outcomes reported to the WriteObserver.
const (
	OutcomeWritten     = "written"
	OutcomeDropped     = "dropped"
	OutcomeRedelivered = "redelivered"
)

const writeTimeout = 5 * time.Second

// Store persists classified entries and assigns id and created_at.
type Store interface {
	Insert(ctx context.Context, e Entry) (Record, error)
}

// Redeliverer takes entries the store refused, for a later retry.
type Redeliverer interface {
	Redeliver(ctx context.Context, e Entry) error
}

// WriteObserver receives one call per Record.
type WriteObserver interface {
	ObserveAuditWrite(outcome string)
}

// Logger records audit entries on a best-effort basis. Failures never reach the caller.
type Logger struct {
	store     Store
	logger    *slog.Logger
	observer  WriteObserver
	redeliver Redeliverer
	warn      *rate.Sometimes
	timeout   time.Duration
}

// LoggerOption customises a Logger.
type LoggerOption func(*Logger)

// WithOperationalLogger sets where write failures are reported.
func WithOperationalLogger(logger *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithWriteObserver reports write outcomes, typically to Prometheus.
func WithWriteObserver(o WriteObserver) LoggerOption {
	return func(l *Logger) {
		l.observer = o
	}
}

// WithRedeliverer hands failed writes to r instead of dropping them.
func WithRedeliverer(r Redeliverer) LoggerOption {
	return func(l *Logger) {
		l.redeliver = r
	}
}

// NewLogger constructs a Logger over store.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store:   store,
		logger:  slog.Default(),
		timeout: writeTimeout,
		// A dead database would otherwise log once per request.
		warn: &rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record classifies e and writes it. The write is detached from ctx cancellation so
// an action that already happened is still recorded when the client goes away.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if l == nil || l.store == nil {
		return
	}
	e = Classify(e)

	detached := context.WithoutCancel(ctx)
	writeCtx, cancel := context.WithTimeout(detached, l.timeout)
	_, err := l.store.Insert(writeCtx, e)
	cancel()
	if err == nil {
		l.observe(OutcomeWritten)
		return
	}

	if l.redeliver != nil {
		// A hung store has already used up writeCtx.
		redeliverCtx, cancel := context.WithTimeout(detached, l.timeout)
		rerr := l.redeliver.Redeliver(redeliverCtx, e)
		cancel()
		if rerr == nil {
			l.observe(OutcomeRedelivered)
			l.warn.Do(func() {
				l.logger.Warn("audit write failed, queued for redelivery",
					slog.String("action", e.Action), slog.Any("error", err))
			})
			return
		}
		err = rerr
	}

	l.observe(OutcomeDropped)
	l.warn.Do(func() {
		l.logger.Error("audit write dropped",
			slog.String("action", e.Action),
			slog.String("actor_id", e.ActorID),
			slog.Any("error", err))
	})
}

func (l *Logger) observe(outcome string) {
	if l.observer != nil {
		l.observer.ObserveAuditWrite(outcome)
	}
}
