package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPort = "6379"

// NewRedis connects to Redis and checks the connection is usable.
func NewRedis(ctx context.Context, addr, user, password string) (*redis.Client, func() error, error) {
	r := redis.NewClient(&redis.Options{
		Addr:     redisAddr(addr),
		Username: user,
		Password: password,
	})

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("can't ping redis at %s: %w", r.Options().Addr, err)
	}

	return r, r.Close, nil
}

func redisAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return addr + ":" + defaultRedisPort
	}
	return addr
}
