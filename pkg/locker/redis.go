package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared between service instances. Locks expire after TTL
// so a crashed holder can't block an item forever.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	// Wait bounds how long Lock polls before giving up with model.ErrConflict.
	Wait time.Duration
	// Poll is the delay between acquisition attempts.
	Poll time.Duration
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKeyPrefix + key
	token := uuid.NewString()

	poll := r.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	deadline := time.Now().Add(r.Wait)

	for {
		err := r.Client.SetArgs(ctx, k, token, redis.SetArgs{Mode: "NX", TTL: r.TTL}).Err()
		switch {
		case err == nil:
			return func() { r.release(k, token) }, nil
		case !errors.Is(err, redis.Nil):
			return nil, fmt.Errorf("can't acquire lock %s: %w", key, err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: lock %s is held by someone else", model.ErrConflict, key)
		}

		select {
		case <-time.After(poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.Client, []string{key}, token).Err(); err != nil {
		slog.Error("can't release lock", slog.String("key", key), slog.Any("error", err))
	}
}
