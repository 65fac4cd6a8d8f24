package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type BookingLogging struct {
	Booking
}

func (bl *BookingLogging) RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (entry model.BookingEntry, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("user_id", caller.ID),
			slog.Int64("item_id", req.ItemID),
			slog.String("range", req.Range.String()),
			slog.Int("quantity", req.Quantity),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			log.Error("failed to request rental", slog.Any("error", err))
		} else {
			log.Debug("rental requested", slog.String("booking_id", entry.ID.String()))
		}
	}(time.Now())

	return bl.Booking.RequestRental(ctx, caller, req)
}

func (bl *BookingLogging) SetBookingStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (entry model.BookingEntry, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("user_id", caller.ID),
			slog.String("booking_id", id.String()),
			slog.String("status", string(status)),
			slog.String("delay", time.Since(t0).String()),
		)

		if err != nil {
			log.Error("failed to set booking status", slog.Any("error", err))
		} else {
			log.Debug("booking status changed")
		}
	}(time.Now())

	return bl.Booking.SetBookingStatus(ctx, caller, id, status)
}
