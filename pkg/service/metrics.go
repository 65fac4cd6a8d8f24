package service

import (
	"context"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/metrics"
	"github.com/IlyushaZ/rental-store/pkg/model"
)

type BookingMetrics struct {
	Booking
}

func (bm *BookingMetrics) RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (entry model.BookingEntry, err error) {
	defer func(t0 time.Time) {
		metrics.CommitDuration.WithLabelValues("rental").Observe(time.Since(t0).Seconds())
		metrics.Reservations.WithLabelValues(metrics.Outcome(err)).Inc()
	}(time.Now())

	return bm.Booking.RequestRental(ctx, caller, req)
}

type OrderMetrics struct {
	Order
}

func (om *OrderMetrics) Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (order model.Order, err error) {
	defer func(t0 time.Time) {
		metrics.CommitDuration.WithLabelValues("checkout").Observe(time.Since(t0).Seconds())
		metrics.Checkouts.WithLabelValues(metrics.Outcome(err)).Inc()
	}(time.Now())

	return om.Order.Checkout(ctx, caller, shipping)
}
