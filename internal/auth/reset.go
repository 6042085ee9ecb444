package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetTokenTTL bounds how long a password reset link stays valid.
const ResetTokenTTL = time.Hour

// ResetTokens keeps single-use password reset tokens in Redis. Only a hash of the
// token is stored.
type ResetTokens struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewResetTokens constructs a ResetTokens store.
func NewResetTokens(client redis.UniversalClient) *ResetTokens {
	return &ResetTokens{client: client, ttl: ResetTokenTTL}
}

// Issue creates a token for userID.
func (t *ResetTokens) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := t.client.Set(ctx, t.key(token), userID, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store reset token: %w", err)
	}
	return token, nil
}

// Consume redeems token, returning the user it was issued for. A token works once.
func (t *ResetTokens) Consume(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := t.client.GetDel(ctx, t.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("auth: redeem reset token: %w", err)
	}
	return userID, true, nil
}

func (t *ResetTokens) key(token string) string {
	return "password-reset:" + Fingerprint(token)
}

// Fingerprint is a stable, non-reversible identifier for a secret token, safe to use
// in storage keys and logs.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
