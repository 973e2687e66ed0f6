package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:verify:"

// Limiter counts attempts per key in a fixed Redis window. A nil client or a
// non-positive limit disables it.
type Limiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
}

func New(client *goredis.Client, limit int64, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: limit, window: window}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil && l.limit > 0
}

// Allow records one attempt for key. When the window is exhausted it returns
// false and the seconds left until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	if key == "" {
		return false, 0, fmt.Errorf("rate key is required")
	}

	fullKey := keyPrefix + key
	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment rate key: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, fullKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("set rate key ttl: %w", err)
		}
	}
	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, fullKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("read rate key ttl: %w", err)
	}
	return false, ceilSeconds(ttl), nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}

// NewRedisClient returns nil when addr is empty.
func NewRedisClient(addr, password string, db int) *goredis.Client {
	if addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
