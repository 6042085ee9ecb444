package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

func TestResolverPrefersBearerSubject(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.add("admin@example.com", "pw", rbac.RoleAdmin, true)
	student := repo.add("student@example.com", "pw", rbac.RoleStudent, true)

	sess := &shared.Session{}
	sess.SetUser(student.ID)
	ctx := shared.ContextWithSession(context.Background(), sess)
	ctx = ContextWithSubject(ctx, admin.ID)

	p, ok, err := NewResolver(repo).ResolvePrincipal(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, admin.ID, p.ID)
	assert.Equal(t, rbac.RoleAdmin, p.Role)
}

func TestResolverUsesSession(t *testing.T) {
	repo := newMemoryRepo()
	student := repo.add("student@example.com", "pw", rbac.RoleStudent, true)
	sess := &shared.Session{}
	sess.SetUser(student.ID)

	p, ok, err := NewResolver(repo).ResolvePrincipal(shared.ContextWithSession(context.Background(), sess))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "student@example.com", p.Email)
}

func TestResolverAbsent(t *testing.T) {
	repo := newMemoryRepo()
	suspended := repo.add("gone@example.com", "pw", rbac.RoleAdmin, false)
	r := NewResolver(repo)

	_, ok, err := r.ResolvePrincipal(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.ResolvePrincipal(ContextWithSubject(context.Background(), "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.ResolvePrincipal(ContextWithSubject(context.Background(), suspended.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolverPropagatesLookupFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.findErr = errors.New("db down")
	_, _, err := NewResolver(repo).ResolvePrincipal(ContextWithSubject(context.Background(), "u-1"))
	assert.Error(t, err)

	_, err = rbac.NewAuthorizer(NewResolver(repo)).RequireAuthenticated(ContextWithSubject(context.Background(), "u-1"))
	assert.Equal(t, shared.KindInternal, shared.KindOf(err))
}

type blockingFinder struct {
	user    *User
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFinder) FindByID(ctx context.Context, _ string) (*User, error) {
	select {
	case f.entered <- struct{}{}:
	default:
	}
	select {
	case <-f.release:
		return f.user, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestResolverSharedLookupIgnoresFirstCallerCancel(t *testing.T) {
	repo := newMemoryRepo()
	student := repo.add("student@example.com", "pw", rbac.RoleStudent, true)
	finder := &blockingFinder{user: student, entered: make(chan struct{}, 2), release: make(chan struct{})}
	r := NewResolver(finder)

	type result struct {
		ok  bool
		err error
	}
	resolve := func(ctx context.Context, out chan<- result) {
		_, ok, err := r.ResolvePrincipal(ContextWithSubject(ctx, student.ID))
		out <- result{ok: ok, err: err}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan result, 1)
	go resolve(firstCtx, first)
	<-finder.entered

	second := make(chan result, 1)
	go resolve(context.Background(), second)
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(finder.release)

	got := <-second
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	<-first
}
