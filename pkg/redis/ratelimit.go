package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then admits the call if
// fewer than limit remain. Replies {admitted, in_window, oldest_ms}.
var slidingWindow = goredis.NewScript(`
local key, now, since, limit, ttl = KEYS[1], tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
redis.call("ZREMRANGEBYSCORE", key, "-inf", since)
local count = redis.call("ZCARD", key)
if count < limit then
	redis.call("ZADD", key, now, ARGV[5])
	redis.call("PEXPIRE", key, ttl)
	return {1, count + 1, 0}
end
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
return {0, count, tonumber(oldest[2] or 0)}
`)

type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// RetryIn is when the oldest call in the window expires; zero when allowed.
	RetryIn time.Duration
}

// RateLimiter keeps one sliding-window budget per key, shared by every
// process pointed at the same Redis.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	seq       func() string
}

func NewRateLimiter(client *Client, keyPrefix string) *RateLimiter {
	if keyPrefix == "" {
		keyPrefix = "fern:ratelimit:"
	}
	return &RateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		seq:       newMember,
	}
}

// Allow records one call against key when the window has room.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	reply, err := slidingWindow.Run(ctx, r.client.rdb, []string{r.keyPrefix + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		limit,
		window.Milliseconds(),
		r.seq(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script for %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit script for %s: unexpected reply %v", key, reply)
	}

	res := &RateLimitResult{Allowed: reply[0] == 1, Remaining: max(limit-reply[1], 0)}
	if !res.Allowed && reply[2] > 0 {
		res.RetryIn = time.UnixMilli(reply[2]).Add(window).Sub(now)
	}
	return res, nil
}

// BlockFor pauses key for d regardless of the window, typically after a
// provider Retry-After.
func (r *RateLimiter) BlockFor(ctx context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.blockKey(key), "1", d)
}

// IsBlocked reports an active BlockFor and its remaining time.
func (r *RateLimiter) IsBlocked(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.blockKey(key))
	if err != nil {
		return false, 0, err
	}
	return ttl > 0, max(ttl, 0), nil
}

func (r *RateLimiter) blockKey(key string) string {
	return r.keyPrefix + key + ":blocked"
}
