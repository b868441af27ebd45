package redis

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter counts hits per key in fixed windows that start at the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	hits, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	// only the hit that created the key opens the window
	if hits == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return hits <= int64(limit), nil
}

// UserCommandKey buckets a chat user's updates by kind, e.g. "msg" or "cb".
func UserCommandKey(userID int64, kind string) string {
	return "ratelimit:tg:" + strconv.FormatInt(userID, 10) + ":" + kind
}
