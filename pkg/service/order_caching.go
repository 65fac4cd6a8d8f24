package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IlyushaZ/rental-store/pkg/cache"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"golang.org/x/sync/singleflight"
)

// OrderCaching keeps a copy of every cart in redis so that cart reads
// don't reach the database. Writes go to the database first and then refresh
// the copy. A copy is never replaced by a cart with an older UpdatedAt, so a
// slow read can't bring back a cart a later write or checkout has changed.
// Errors occurring when calling redis are not returned.
type OrderCaching struct {
	Order

	Cache *cache.CartRedis

	loads singleflight.Group
}

func (oc *OrderCaching) GetCart(ctx context.Context, caller model.Caller) (model.Cart, error) {
	cart, err := oc.Cache.Get(ctx, caller.ID)
	switch {
	case err == nil:
		return cart, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		slog.Error("can't get cart from cache", slog.Any("error", err))
	}

	// slower path - read from DB, once per owner however many requests missed
	v, err, _ := oc.loads.Do(caller.ID, func() (any, error) {
		cart, err := oc.Order.GetCart(ctx, caller)
		if err != nil {
			return nil, err
		}

		oc.set(ctx, cart)
		return cart, nil
	})
	if err != nil {
		return model.Cart{}, err
	}

	return v.(model.Cart), nil
}

func (oc *OrderCaching) AddLine(ctx context.Context, caller model.Caller, line model.CartLine) (model.Cart, error) {
	cart, err := oc.Order.AddLine(ctx, caller, line)
	if err != nil {
		return cart, err
	}

	oc.set(ctx, cart)
	return cart, nil
}

func (oc *OrderCaching) RemoveItem(ctx context.Context, caller model.Caller, itemID int64) (model.Cart, error) {
	cart, err := oc.Order.RemoveItem(ctx, caller, itemID)
	if err != nil {
		return cart, err
	}

	oc.set(ctx, cart)
	return cart, nil
}

func (oc *OrderCaching) Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (model.Order, error) {
	order, err := oc.Order.Checkout(ctx, caller, shipping)
	if err != nil {
		return order, err
	}

	// the emptied cart is newer than anything a concurrent load may still put back
	cart, err := oc.Order.GetCart(ctx, caller)
	if err == nil {
		oc.set(ctx, cart)
	} else if err := oc.Cache.Delete(ctx, caller.ID); err != nil {
		slog.Error("can't drop cart from cache", slog.Any("error", err))
	}

	return order, nil
}

func (oc *OrderCaching) set(ctx context.Context, cart model.Cart) {
	if err := oc.Cache.SetIfNewer(ctx, cart); err != nil {
		slog.Error("can't put cart in cache", slog.Any("error", err))
	}
}
