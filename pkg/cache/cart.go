package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/redis/go-redis/v9"
)

const (
	cartKeyPrefix = "cart:"
	// setAttempts bounds retries of SetIfNewer when the key changes under it.
	setAttempts = 3
)

var ErrCacheMiss = errors.New("cache miss")

// CartRedis keeps serialized carts in redis. It is only a read-through copy:
// checkout always reads the cart from the database under lock.
type CartRedis struct {
	Client *redis.Client
	TTL    time.Duration
}

func (c *CartRedis) Get(ctx context.Context, ownerID string) (model.Cart, error) {
	data, err := c.Client.Get(ctx, cartKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Cart{}, ErrCacheMiss
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("can't get cart from redis: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return model.Cart{}, fmt.Errorf("can't unmarshal cart: %w", err)
	}

	return cart, nil
}

func (c *CartRedis) Set(ctx context.Context, cart model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("can't marshal cart: %w", err)
	}

	if err := c.Client.Set(ctx, cartKey(cart.OwnerID), data, c.TTL).Err(); err != nil {
		return fmt.Errorf("can't set cart in redis: %w", err)
	}

	return nil
}

// SetIfNewer stores cart unless the cached copy was updated after it, so a
// slow writer can't replace a newer cart with an older one.
func (c *CartRedis) SetIfNewer(ctx context.Context, cart model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("can't marshal cart: %w", err)
	}

	key := cartKey(cart.OwnerID)
	txf := func(tx *redis.Tx) error {
		cached, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cur model.Cart
			if json.Unmarshal(cached, &cur) == nil && cur.UpdatedAt.After(cart.UpdatedAt) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.TTL)
			return nil
		})
		return err
	}

	for range setAttempts {
		err = c.Client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("can't set cart in redis: %w", err)
	}

	return nil
}

func (c *CartRedis) Delete(ctx context.Context, ownerID string) error {
	if err := c.Client.Del(ctx, cartKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("can't delete cart from redis: %w", err)
	}

	return nil
}

func cartKey(ownerID string) string {
	return cartKeyPrefix + ownerID
}
