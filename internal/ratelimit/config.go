// Package ratelimit bounds the rate of sensitive operations per subject with a fixed
// window counter and optional lockout escalation.
package ratelimit

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const defaultMessage = "Too many requests. Please try again later."

// Config describes one limit. MaxAttempts calls are allowed per Window; the next one is
// rejected and, when LockoutDuration is positive, arms a lockout of that length.
type Config struct {
	MaxAttempts     int           `json:"maxAttempts"`
	Window          time.Duration `json:"window"`
	LockoutDuration time.Duration `json:"lockoutDuration,omitempty"`
	Message         string        `json:"message,omitempty"`
}

// Validate reports configuration mistakes. The limiter treats these as programmer errors.
func (c Config) Validate() error {
	var errs []error
	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Window <= 0 {
		errs = append(errs, errors.New("window must be positive"))
	}
	if c.LockoutDuration < 0 {
		errs = append(errs, errors.New("lockout duration must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) message() string {
	if c.Message != "" {
		return c.Message
	}
	return defaultMessage
}

// Preset names as exposed to operators.
const (
	PresetLogin                = "login"
	PresetRegister             = "register"
	PresetPasswordReset        = "passwordReset"
	PresetPasswordResetConfirm = "passwordResetConfirm"
	PresetAPI                  = "api"
)

var (
	Login = Config{
		MaxAttempts:     5,
		Window:          15 * time.Minute,
		LockoutDuration: time.Hour,
		Message:         "Too many login attempts. Please try again later.",
	}
	Register = Config{
		MaxAttempts: 3,
		Window:      time.Hour,
		Message:     "Too many registration attempts. Please try again later.",
	}
	PasswordReset = Config{
		MaxAttempts: 3,
		Window:      time.Hour,
		Message:     "Too many password reset requests. Please try again later.",
	}
	// PasswordResetConfirm is keyed per token.
	PasswordResetConfirm = Config{
		MaxAttempts:     5,
		Window:          time.Hour,
		LockoutDuration: 24 * time.Hour,
		Message:         "Too many attempts for this reset link. Please request a new one later.",
	}
	API = Config{
		MaxAttempts: 100,
		Window:      15 * time.Minute,
		Message:     "Too many requests. Please slow down.",
	}
)

// Presets returns the named configurations keyed by preset name.
func Presets() map[string]Config {
	return map[string]Config{
		PresetLogin:                Login,
		PresetRegister:             Register,
		PresetPasswordReset:        PasswordReset,
		PresetPasswordResetConfirm: PasswordResetConfirm,
		PresetAPI:                  API,
	}
}

// Key prefixes. A full key is prefix:subject.
const (
	PrefixLogin                = "login"
	PrefixLoginEmail           = "login-email"
	PrefixRegister             = "register"
	PrefixPasswordReset        = "password-reset"
	PrefixPasswordResetConfirm = "password-reset-confirm"
	PrefixTokenIssue           = "token"
	PrefixAPI                  = "api"
)

// Key joins a prefix and a subject.
func Key(prefix, subject string) string {
	return prefix + ":" + subject
}

// NormalizeSubject trims and case-folds a user supplied subject such as an email address
// so that "Alice@X.com" and "alice@x.com " share one counter.
func NormalizeSubject(subject string) string {
	return cases.Fold().String(strings.TrimSpace(subject))
}

// matchesPrefix reports whether key is prefix itself or belongs to the prefix:* family.
func matchesPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+":")
}
