package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumen-lms/lumen/internal/platform/httpx"
	"github.com/lumen-lms/lumen/internal/shared"
)

// DenialObserver is told about every 401 and 403 the middleware issues.
type DenialObserver interface {
	ObserveAuthzDenial(kind string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers. On success the
// principal is placed in the request context.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
	Observer   DenialObserver
}

// Resolve places the principal in context when one exists and never rejects.
func (m Middleware) Resolve() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok, err := m.Authorizer.ResolvePrincipal(r.Context())
			if err != nil {
				m.deny(w, err)
				return
			}
			if ok {
				r = r.WithContext(ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects anonymous callers with 401.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.guard(m.Authorizer.RequireAuthenticated)
}

// RequireRole ensures the caller holds one of roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context) (Principal, error) {
		return m.Authorizer.RequireRole(ctx, roles...)
	})
}

// RequirePermission ensures the caller's role grants perm.
func (m Middleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context) (Principal, error) {
		return m.Authorizer.RequirePermission(ctx, perm)
	})
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard(func(ctx context.Context) (Principal, error) {
		p, err := m.Authorizer.RequireAuthenticated(ctx)
		if err != nil {
			return Principal{}, err
		}
		if !HasAny(p.Role, normalized...) {
			return Principal{}, errForbidden()
		}
		return p, nil
	})
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard(func(ctx context.Context) (Principal, error) {
		p, err := m.Authorizer.RequireAuthenticated(ctx)
		if err != nil {
			return Principal{}, err
		}
		if !HasAll(p.Role, normalized...) {
			return Principal{}, errForbidden()
		}
		return p, nil
	})
}

// RequireAdmin allows ADMIN only.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.guard(m.Authorizer.RequireAdmin)
}

// RequireInstructorOrAdmin allows INSTRUCTOR and ADMIN.
func (m Middleware) RequireInstructorOrAdmin() func(http.Handler) http.Handler {
	return m.guard(m.Authorizer.RequireInstructorOrAdmin)
}

// RequireModeratorOrAdmin allows MODERATOR and ADMIN.
func (m Middleware) RequireModeratorOrAdmin() func(http.Handler) http.Handler {
	return m.guard(m.Authorizer.RequireModeratorOrAdmin)
}

func (m Middleware) guard(check func(context.Context) (Principal, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := check(r.Context())
			if err != nil {
				m.deny(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindUnauthorized:
		m.observe("unauthorized")
	case shared.KindForbidden:
		m.observe("forbidden")
	default:
		if m.Logger != nil {
			m.Logger.Error("rbac resolve principal", slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}

func (m Middleware) observe(kind string) {
	if m.Observer != nil {
		m.Observer.ObserveAuthzDenial(kind)
	}
}

func normalizePermissions(perms []Permission) []Permission {
	unique := make(map[Permission]struct{}, len(perms))
	normalized := make([]Permission, 0, len(perms))
	for _, p := range perms {
		p = Permission(strings.TrimSpace(strings.ToLower(string(p))))
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
