package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type OrderLogging struct {
	Order
}

func (ol *OrderLogging) Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (order model.Order, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("user_id", caller.ID),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			log.Error("failed to checkout cart", slog.Any("error", err))
		} else {
			log.Debug("cart checked out",
				slog.String("order_id", order.ID.String()),
				slog.Int("lines", len(order.Lines)),
				slog.String("total", order.Total.String()),
			)
		}
	}(time.Now())

	return ol.Order.Checkout(ctx, caller, shipping)
}

func (ol *OrderLogging) SetOrderStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (order model.Order, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("user_id", caller.ID),
			slog.String("order_id", id.String()),
			slog.String("status", string(status)),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			log.Error("failed to set order status", slog.Any("error", err))
		} else {
			log.Debug("order status changed")
		}
	}(time.Now())

	return ol.Order.SetOrderStatus(ctx, caller, id, status)
}
