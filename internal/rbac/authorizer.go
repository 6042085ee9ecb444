package rbac

import (
	"context"
	"fmt"

	"github.com/lumen-lms/lumen/internal/shared"
)

// PrincipalResolver looks up the caller, typically from the session or a bearer token.
// ok is false when nobody is authenticated; err is reserved for lookup failures.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context) (p Principal, ok bool, err error)
}

// ResolverFunc adapts a function to PrincipalResolver.
type ResolverFunc func(ctx context.Context) (Principal, bool, error)

// ResolvePrincipal implements PrincipalResolver.
func (f ResolverFunc) ResolvePrincipal(ctx context.Context) (Principal, bool, error) {
	return f(ctx)
}

// Authorizer answers "who is calling" and "is this permitted".
type Authorizer struct {
	resolver PrincipalResolver
}

// NewAuthorizer constructs an Authorizer over resolver.
func NewAuthorizer(resolver PrincipalResolver) *Authorizer {
	return &Authorizer{resolver: resolver}
}

// ResolvePrincipal returns the caller. A principal already placed in ctx by the
// middleware is reused for the rest of the request.
func (a *Authorizer) ResolvePrincipal(ctx context.Context) (Principal, bool, error) {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p, true, nil
	}
	if a == nil || a.resolver == nil {
		return Principal{}, false, nil
	}
	p, ok, err := a.resolver.ResolvePrincipal(ctx)
	if err != nil {
		return Principal{}, false, shared.Internal(fmt.Errorf("rbac: resolve principal: %w", err))
	}
	if !ok || !p.Role.Valid() {
		return Principal{}, false, nil
	}
	return p, true, nil
}

// RequireAuthenticated fails with Unauthorized when nobody is signed in.
func (a *Authorizer) RequireAuthenticated(ctx context.Context) (Principal, error) {
	p, ok, err := a.ResolvePrincipal(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, errUnauthorized()
	}
	return p, nil
}

// RequireRole fails with Unauthorized when nobody is signed in, else Forbidden when
// the principal's role is not among roles.
func (a *Authorizer) RequireRole(ctx context.Context, roles ...Role) (Principal, error) {
	p, err := a.RequireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	return Principal{}, errForbidden()
}

// RequirePermission fails with Unauthorized when nobody is signed in, else Forbidden
// when the principal's role lacks perm.
func (a *Authorizer) RequirePermission(ctx context.Context, perm Permission) (Principal, error) {
	p, err := a.RequireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !HasPermission(p.Role, perm) {
		return Principal{}, errForbidden()
	}
	return p, nil
}

// RequireAdmin allows ADMIN only.
func (a *Authorizer) RequireAdmin(ctx context.Context) (Principal, error) {
	return a.RequireRole(ctx, RoleAdmin)
}

// RequireInstructorOrAdmin allows INSTRUCTOR and ADMIN.
func (a *Authorizer) RequireInstructorOrAdmin(ctx context.Context) (Principal, error) {
	return a.RequireRole(ctx, RoleInstructor, RoleAdmin)
}

// RequireModeratorOrAdmin allows MODERATOR and ADMIN.
func (a *Authorizer) RequireModeratorOrAdmin(ctx context.Context) (Principal, error) {
	return a.RequireRole(ctx, RoleModerator, RoleAdmin)
}

func errUnauthorized() error {
	return shared.ErrAuthenticationRequired
}

func errForbidden() error {
	return shared.ErrInsufficientPermissions
}
