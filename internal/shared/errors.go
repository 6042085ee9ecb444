package shared

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind is the closed set of failure classes surfaced to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error carries a Kind plus a stable machine code and a message safe to show clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	// ErrInvalidCredentials indicates login failure. The message never reveals which half was wrong.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	// ErrAuthenticationRequired is returned when no principal could be resolved.
	ErrAuthenticationRequired = &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"}
	// ErrInsufficientPermissions is returned when the principal lacks the capability or role.
	ErrInsufficientPermissions = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "insufficient permissions"}
)

// Unauthorized builds an authentication failure.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// Forbidden builds an authorization failure.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

// NotFound builds a missing-resource failure.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

// Conflict builds a state conflict failure.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: message}
}

// Validation builds an input validation failure.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message}
}

// Internal wraps an unexpected failure. The message is generic; err is kept for logs.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal error", Err: err}
}

// RateLimitError is returned when a limiter rejects an attempt.
type RateLimitError struct {
	RetryAfter time.Duration
	Lockout    bool
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Lockout {
		return fmt.Sprintf("rate limited (locked out, retry after %ds)", e.RetryAfterSeconds())
	}
	return fmt.Sprintf("rate limited (retry after %ds)", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// KindOf reports the Kind of err; anything outside the taxonomy is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
