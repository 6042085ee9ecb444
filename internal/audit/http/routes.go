package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and export endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.TooManyRequests(w, &shared.RateLimitError{
				RetryAfter: rateWindow,
				Message:    "Too many export requests. Please try again later.",
			})
		}),
	)
	r.With(h.rbac.RequirePermission(rbac.PermViewAuditLogs)).Get("/audit", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.RequirePermission(rbac.PermExportAuditLogs))
		gr.Use(limiter)
		gr.Get("/audit/export.csv", h.handleExportCSV)
		gr.Get("/audit/export.json", h.handleExportJSON)
	})
}

// rateLimitKey runs after the permission guard, so a principal is normally present.
func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok && p.ID != "" {
		return "user:" + p.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
