package service

import (
	"context"
	"log/slog"

	"github.com/IlyushaZ/rental-store/pkg/events"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

// BookingPublishing emits an event for every committed booking change.
// Publishing failures are logged and never fail the request.
type BookingPublishing struct {
	Booking

	Publisher events.Publisher
}

func (bp *BookingPublishing) RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (model.BookingEntry, error) {
	entry, err := bp.Booking.RequestRental(ctx, caller, req)
	if err != nil {
		return entry, err
	}

	if err := bp.Publisher.Publish(ctx, events.BookingRequested(entry)); err != nil {
		slog.Error("can't publish booking event", slog.String("booking_id", entry.ID.String()), slog.Any("error", err))
	}

	return entry, nil
}

func (bp *BookingPublishing) SetBookingStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.BookingEntry, error) {
	entry, err := bp.Booking.SetBookingStatus(ctx, caller, id, status)
	if err != nil {
		return entry, err
	}

	if err := bp.Publisher.Publish(ctx, events.BookingStatusChanged(entry)); err != nil {
		slog.Error("can't publish booking event", slog.String("booking_id", id.String()), slog.Any("error", err))
	}

	return entry, nil
}
