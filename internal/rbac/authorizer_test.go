package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lms/lumen/internal/shared"
)

func staticResolver(p *Principal) ResolverFunc {
	return func(context.Context) (Principal, bool, error) {
		if p == nil {
			return Principal{}, false, nil
		}
		return *p, true, nil
	}
}

func TestRequireRoleTaxonomy(t *testing.T) {
	ctx := context.Background()

	_, err := NewAuthorizer(staticResolver(nil)).RequireRole(ctx, RoleAdmin)
	assert.Equal(t, shared.KindUnauthorized, shared.KindOf(err))

	student := &Principal{ID: "s1", Role: RoleStudent}
	_, err = NewAuthorizer(staticResolver(student)).RequireRole(ctx, RoleAdmin)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	admin := &Principal{ID: "a1", Role: RoleAdmin, Name: "Ada"}
	p, err := NewAuthorizer(staticResolver(admin)).RequireRole(ctx, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, *admin, p)
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	instructor := &Principal{ID: "i1", Role: RoleInstructor}
	a := NewAuthorizer(staticResolver(instructor))

	_, err := a.RequirePermission(ctx, PermGradeSubmissions)
	assert.NoError(t, err)
	_, err = a.RequirePermission(ctx, PermManageUsers)
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	_, err = NewAuthorizer(staticResolver(nil)).RequirePermission(ctx, PermViewCourses)
	assert.Equal(t, shared.KindUnauthorized, shared.KindOf(err))
}

func TestConvenienceGuards(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		role                               Role
		admin, instructorOrAdmin, modOrAdm bool
	}{
		{RoleAdmin, true, true, true},
		{RoleModerator, false, false, true},
		{RoleInstructor, false, true, false},
		{RoleStudent, false, false, false},
	}
	for _, tc := range cases {
		a := NewAuthorizer(staticResolver(&Principal{ID: "x", Role: tc.role}))
		_, err := a.RequireAdmin(ctx)
		assert.Equal(t, tc.admin, err == nil, "admin %s", tc.role)
		_, err = a.RequireInstructorOrAdmin(ctx)
		assert.Equal(t, tc.instructorOrAdmin, err == nil, "instructor-or-admin %s", tc.role)
		_, err = a.RequireModeratorOrAdmin(ctx)
		assert.Equal(t, tc.modOrAdm, err == nil, "moderator-or-admin %s", tc.role)
	}
}

func TestResolverFailureIsInternal(t *testing.T) {
	a := NewAuthorizer(ResolverFunc(func(context.Context) (Principal, bool, error) {
		return Principal{}, false, errors.New("redis: timeout")
	}))
	_, err := a.RequireAuthenticated(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.KindInternal, shared.KindOf(err))
}

func TestUnknownRoleResolvesAsAnonymous(t *testing.T) {
	a := NewAuthorizer(staticResolver(&Principal{ID: "x", Role: "ROOT"}))
	_, err := a.RequireAuthenticated(context.Background())
	assert.Equal(t, shared.KindUnauthorized, shared.KindOf(err))
}

func TestPrincipalInContextWins(t *testing.T) {
	calls := 0
	a := NewAuthorizer(ResolverFunc(func(context.Context) (Principal, bool, error) {
		calls++
		return Principal{}, false, nil
	}))
	ctx := ContextWithPrincipal(context.Background(), Principal{ID: "m1", Role: RoleModerator})
	p, err := a.RequireModeratorOrAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", p.ID)
	assert.Zero(t, calls)
}

func TestOwnerOrAdmin(t *testing.T) {
	g, err := OwnerOrAdmin(Principal{ID: "i1", Role: RoleInstructor}, "i1")
	require.NoError(t, err)
	assert.Equal(t, GrantOwner, g)

	g, err = OwnerOrAdmin(Principal{ID: "a1", Role: RoleAdmin}, "i1")
	require.NoError(t, err)
	assert.Equal(t, GrantAdminOverride, g)

	g, err = OwnerOrAdmin(Principal{ID: "a1", Role: RoleAdmin}, "a1")
	require.NoError(t, err)
	assert.Equal(t, GrantOwner, g, "an admin acting on their own resource is not an override")

	_, err = OwnerOrAdmin(Principal{ID: "i2", Role: RoleInstructor}, "i1")
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
