package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/lumen-lms/lumen/internal/audit/http"
	"github.com/lumen-lms/lumen/internal/auth"
	"github.com/lumen-lms/lumen/internal/courses"
	"github.com/lumen-lms/lumen/internal/observability"
	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/ratelimit"
	ratelimithttp "github.com/lumen-lms/lumen/internal/ratelimit/http"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
	"github.com/lumen-lms/lumen/internal/users"
	"github.com/lumen-lms/lumen/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Tokens         *auth.TokenIssuer
	Limiter        *ratelimit.Limiter
	Metrics        *observability.Metrics
	RBACMiddleware rbac.Middleware

	AuthHandler      *auth.Handler
	RBACHandler      *rbac.Handler
	UsersHandler     *users.Handler
	CoursesHandler   *courses.Handler
	AuditHandler     *audithttp.Handler
	RateLimitHandler *ratelimithttp.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Lumen defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Tokens:         params.Tokens,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if params.Limiter != nil {
			r.Use(params.Limiter.Middleware(ratelimit.PresetAPI, ratelimit.API, ratelimit.KeyByIP(ratelimit.PrefixAPI)))
		}

		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.RBACHandler != nil {
			r.Route("/rbac", params.RBACHandler.MountRoutes)
		}
		if params.CoursesHandler != nil {
			r.Route("/courses", params.CoursesHandler.MountRoutes)
		}

		r.Route("/admin", func(r chi.Router) {
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
			if params.RateLimitHandler != nil {
				params.RateLimitHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBACMiddleware.RequirePermission(rbac.PermManageSystem))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.ErrNotFound)
	})
	return r
}
