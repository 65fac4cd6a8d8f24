package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IlyushaZ/rental-store/pkg/limiter"
	"github.com/IlyushaZ/rental-store/pkg/model"
)

var ErrLimitExceeded = errors.New("user exceeded the daily rental request limit")

// BookingLimiting is a wrapper over Booking service
// which makes sure that a user makes no more than Limiter.Limit rental requests per day.
// Only accepted requests count towards the limit.
//
// If failed to check limits, the behavior depends on FailOpen flag. If set, current request is allowed.
// Otherwise, an error will be returned.
type BookingLimiting struct {
	Booking

	Limiter  *limiter.Limiter
	FailOpen bool
}

func (bl *BookingLimiting) RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (model.BookingEntry, error) {
	exceeded, err := bl.Limiter.LimitExceeded(ctx, caller.ID)
	if err != nil {
		if !bl.FailOpen {
			return model.BookingEntry{}, fmt.Errorf("can't check if limit exceeded: %w", err)
		}

		slog.Error("can't check if limit exceeded", slog.Any("error", err))
	}

	if exceeded {
		return model.BookingEntry{}, ErrLimitExceeded
	}

	entry, err := bl.Booking.RequestRental(ctx, caller, req)
	if err != nil {
		return entry, err
	}

	if _, err := bl.Limiter.Increment(ctx, caller.ID); err != nil {
		slog.Error("can't increment user's limit", slog.Any("error", err))
	}

	return entry, nil
}
