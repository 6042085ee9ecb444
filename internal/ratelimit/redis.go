package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultNamespace = "ratelimit:"

// consumeScript mirrors step() on the server so the check and the increment are one
// atomic operation across every instance sharing the Redis.
//
// KEYS[1] entry hash; ARGV now_ms, max_attempts, window_ms, lockout_ms.
// Returns {allowed, retry_after_ms, lockout, count}.
var consumeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local lockout = tonumber(ARGV[4])
local e = redis.call('HMGET', KEYS[1], 'count', 'reset', 'lockout')
local count = tonumber(e[1])
local reset = tonumber(e[2])
local locked = tonumber(e[3]) or 0
if count and now < locked then
  return {0, locked - now, 1, count}
end
if not count or now >= reset then
  reset = now + window
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset, 'lockout', 0)
  redis.call('PEXPIRE', KEYS[1], reset - now)
  return {1, 0, 0, 1}
end
count = count + 1
redis.call('HSET', KEYS[1], 'count', count)
if count > max then
  if lockout > 0 then
    locked = now + lockout
    redis.call('HSET', KEYS[1], 'lockout', locked)
    redis.call('PEXPIRE', KEYS[1], math.max(reset, locked) - now)
    return {0, lockout, 1, count}
  end
  return {0, reset - now, 0, count}
end
return {1, 0, 0, count}
`)

// RedisStore shares counters between instances. Redis key expiry reclaims entries,
// so Sweep has nothing to do.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore returns a RedisStore writing under the "ratelimit:" namespace.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, namespace: defaultNamespace}
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, key string, cfg Config, now time.Time) (Decision, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.namespace + key},
		now.UnixMilli(),
		cfg.MaxAttempts,
		cfg.Window.Milliseconds(),
		cfg.LockoutDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: consume %s: %w", key, err)
	}
	if len(res) != 4 {
		return Decision{}, fmt.Errorf("ratelimit: consume %s: unexpected reply length %d", key, len(res))
	}
	if res[0] == 1 {
		return allowed(), nil
	}
	return rejected(time.Duration(res[1])*time.Millisecond, res[2] == 1, cfg), nil
}

// Peek implements Store.
func (s *RedisStore) Peek(ctx context.Context, key string) (Entry, bool, error) {
	vals, err := s.client.HMGet(ctx, s.namespace+key, "count", "reset", "lockout").Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit: peek %s: %w", key, err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return Entry{}, false, nil
	}
	count, err := parseInt(vals[0])
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit: peek %s: %w", key, err)
	}
	reset, err := parseInt(vals[1])
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit: peek %s: %w", key, err)
	}
	lockout, _ := parseInt(vals[2])
	entry := Entry{Count: int(count), ResetAt: time.UnixMilli(reset)}
	if lockout > 0 {
		entry.LockoutUntil = time.UnixMilli(lockout)
	}
	return entry, true, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return s.ClearAll(ctx)
	}
	exact, err := s.client.Del(ctx, s.namespace+prefix).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: clear %s: %w", prefix, err)
	}
	n, err := s.deleteMatching(ctx, s.namespace+escapeGlob(prefix)+":*")
	return int(exact) + n, err
}

// ClearAll implements Store.
func (s *RedisStore) ClearAll(ctx context.Context) (int, error) {
	return s.deleteMatching(ctx, escapeGlob(s.namespace)+"*")
}

// Sweep implements Store.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("ratelimit: delete %s: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("ratelimit: scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("ratelimit: delete %s: %w", pattern, err)
	}
	return removed, nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseInt(v any) (int64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, errors.New("missing field")
	default:
		return 0, fmt.Errorf("unexpected field type %T", v)
	}
}
