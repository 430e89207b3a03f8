package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter per client shared by every
// instance.
type RateLimiter struct {
	client *Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per client per window. A non-positive
// window defaults to one minute and a non-positive limit to ten.
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Allow counts a hit for client and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	window := l.now().UnixNano() / int64(l.window)
	key := l.client.rateKey(client, window)

	var incr *redis.IntCmd
	_, err := l.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit pipeline failed: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
