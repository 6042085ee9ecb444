package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func TestAnonymousSessionIsNotPersisted(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	assert.Empty(t, mr.Keys())
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionRoundTripAndRenew(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.Set("k", "v")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	firstID := sess.ID
	assert.True(t, mr.Exists("session:"+firstID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: firstID})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "v", loaded.Get("k"))

	sm.Renew(loaded)
	loaded.SetUser("user-1")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, loaded))
	assert.NotEqual(t, firstID, loaded.ID)
	assert.False(t, mr.Exists("session:"+firstID))
	assert.True(t, mr.Exists("session:"+loaded.ID))
}

func TestUnknownSessionIDIsReplaced(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "attacker-chosen"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestDestroyClearsCookie(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("user-1")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
