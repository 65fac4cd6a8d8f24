package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "limiter:rentals:"

const redisTimeout = 300 * time.Millisecond

// Limiter counts rental requests per user per calendar day (UTC).
type Limiter struct {
	Redis *redis.Client
	Limit int

	now func() time.Time
}

func (l *Limiter) Increment(ctx context.Context, userID string) (int, error) {
	key := l.userCounterKey(userID)

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("can't increment user's counter: %w", err)
	}

	if val == 1 {
		if err := l.Redis.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			return 0, fmt.Errorf("can't set counter expiration: %w", err)
		}
	}

	return int(val), nil
}

// LimitExceeded reports whether the user already made Limit requests today.
func (l *Limiter) LimitExceeded(ctx context.Context, userID string) (bool, error) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	c, err := l.Redis.Get(ctx, l.userCounterKey(userID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, err
	}

	return c >= l.Limit, nil
}

// userCounterKey builds the key holding the user's request count.
// It consists of user's ID concatenated to the current UTC date.
func (l *Limiter) userCounterKey(userID string) string {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	return cacheKeyPrefix + userID + ":" + now().UTC().Format("2006-01-02")
}
