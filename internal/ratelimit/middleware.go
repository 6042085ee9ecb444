package ratelimit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httprate"

	"github.com/lumen-lms/lumen/internal/platform/httpx"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) (string, error)

// KeyByIP keys requests by client address under prefix.
func KeyByIP(prefix string) KeyFunc {
	return func(r *http.Request) (string, error) {
		ip, err := httprate.KeyByIP(r)
		if err != nil {
			return "", err
		}
		return Key(prefix, ip), nil
	}
}

// Middleware rejects requests over cfg with 429 before the handler runs.
func (l *Limiter) Middleware(name string, cfg Config, keyFn KeyFunc) func(http.Handler) http.Handler {
	if err := cfg.Validate(); err != nil {
		panic("ratelimit: invalid config " + name + ": " + err.Error())
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFn(r)
			if err != nil {
				l.logger.Warn("rate limit key", slog.String("preset", name), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusPreconditionRequired), http.StatusPreconditionRequired)
				return
			}
			if d := l.Allow(r.Context(), name, key, cfg); !d.Allowed {
				httpx.RespondError(w, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
