package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/shared"
)

// BearerMiddleware verifies an Authorization: Bearer token when one is present and
// stores its subject for the Resolver. Requests without the header pass through.
func BearerMiddleware(tokens *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				httpx.RespondError(w, shared.Unauthorized("malformed authorization header"))
				return
			}
			subject, err := tokens.Verify(strings.TrimSpace(raw))
			if err != nil {
				if logger != nil {
					logger.Debug("bearer token rejected", slog.Any("error", err))
				}
				httpx.RespondError(w, shared.Unauthorized("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
		})
	}
}
