package service

import (
	"context"
	"log/slog"

	"github.com/IlyushaZ/rental-store/pkg/events"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type OrderPublishing struct {
	Order

	Publisher events.Publisher
}

func (op *OrderPublishing) Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (model.Order, error) {
	order, err := op.Order.Checkout(ctx, caller, shipping)
	if err != nil {
		return order, err
	}

	if err := op.Publisher.Publish(ctx, events.OrderPlaced(order)); err != nil {
		slog.Error("can't publish order event", slog.String("order_id", order.ID.String()), slog.Any("error", err))
	}

	return order, nil
}

func (op *OrderPublishing) SetOrderStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.Order, error) {
	order, err := op.Order.SetOrderStatus(ctx, caller, id, status)
	if err != nil {
		return order, err
	}

	if err := op.Publisher.Publish(ctx, events.OrderStatusChanged(order)); err != nil {
		slog.Error("can't publish order event", slog.String("order_id", id.String()), slog.Any("error", err))
	}

	return order, nil
}
