package ratelimit

import (
	"math"
	"time"

	"github.com/lumen-lms/lumen/internal/shared"
)

// Decision is the outcome of one check-and-consume step.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Lockout    bool
	Message    string
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func rejected(retryAfter time.Duration, lockout bool, cfg Config) Decision {
	return Decision{RetryAfter: retryAfter, Lockout: lockout, Message: cfg.message()}
}

// RetryAfterSeconds rounds the wait up to whole seconds. Rejections never report zero.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Err converts a rejection into the shared taxonomy; it is nil when the call was allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &shared.RateLimitError{RetryAfter: d.RetryAfter, Lockout: d.Lockout, Message: d.Message}
}
