package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

const lookupTimeout = 5 * time.Second

type subjectKey struct{}

// ContextWithSubject stores a verified bearer token subject.
func ContextWithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns the bearer subject, if any.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(subjectKey{}).(string)
	return v
}

// UserFinder loads accounts by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

// Resolver turns the bearer subject or the session user into a principal. It
// implements rbac.PrincipalResolver.
type Resolver struct {
	users UserFinder
	group singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(users UserFinder) *Resolver {
	return &Resolver{users: users}
}

// ResolvePrincipal implements rbac.PrincipalResolver. Missing and suspended accounts
// resolve as absent.
func (r *Resolver) ResolvePrincipal(ctx context.Context) (rbac.Principal, bool, error) {
	userID := SubjectFromContext(ctx)
	if userID == "" {
		if sess := shared.SessionFromContext(ctx); sess != nil {
			userID = sess.User()
		}
	}
	if userID == "" {
		return rbac.Principal{}, false, nil
	}

	// The lookup is shared by every request for userID, so it must outlive the
	// first caller's cancellation.
	v, err, _ := r.group.Do(userID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return r.users.FindByID(lookupCtx, userID)
	})
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return rbac.Principal{}, false, nil
		}
		return rbac.Principal{}, false, err
	}
	user := v.(*User)
	if !user.IsActive {
		return rbac.Principal{}, false, nil
	}
	return user.Principal(), true, nil
}

var _ rbac.PrincipalResolver = (*Resolver)(nil)
