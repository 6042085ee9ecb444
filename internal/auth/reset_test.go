package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetTokens(t *testing.T) (*ResetTokens, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResetTokens(client), mr
}

func TestResetTokenSingleUse(t *testing.T) {
	tokens, mr := newResetTokens(t)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "u-1")
	require.NoError(t, err)
	assert.NotContains(t, mr.Keys()[0], token, "raw token is never stored")

	userID, ok, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", userID)

	_, ok, err = tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetTokenExpires(t *testing.T) {
	tokens, mr := newResetTokens(t)
	ctx := context.Background()
	token, err := tokens.Issue(ctx, "u-1")
	require.NoError(t, err)

	mr.FastForward(ResetTokenTTL + time.Second)
	_, ok, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tokens.Consume(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
