package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/availability"
	"github.com/IlyushaZ/rental-store/pkg/database"
	"github.com/IlyushaZ/rental-store/pkg/locker"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/IlyushaZ/rental-store/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Booking interface {
	CheckAvailability(ctx context.Context, itemID int64, r model.DateRange) (availability.Result, error)
	RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (model.BookingEntry, error)
	ListForOwner(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error)
	// ListForSeller returns bookings of every item the caller sells.
	ListForSeller(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error)
	ListAll(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error)
	SetBookingStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.BookingEntry, error)
	// Calendar returns per-day usage of an item over r, for the item's seller or an admin.
	Calendar(ctx context.Context, caller model.Caller, itemID int64, r model.DateRange) ([]availability.DayUsage, error)
}

type RentalRequest struct {
	ItemID   int64
	Range    model.DateRange
	Quantity int
}

func (r *RentalRequest) Validate() error {
	if r.Quantity < 1 {
		return model.Validationf("quantity must be positive, got %d", r.Quantity)
	}
	if _, err := model.NewDateRange(r.Range.Start, r.Range.End); err != nil {
		return err
	}
	return nil
}

// BookingGeneric contains the core reservation logic. It can be wrapped in
// the other implementations contained in booking_*.go.
//
// Every check-then-write on an item runs under Locker for that item and inside
// a transaction that locks the item row, so concurrent requests for the same
// item are serialized while different items proceed independently.
type BookingGeneric struct {
	Store    database.Store
	Locker   locker.Locker
	Attempts database.AttemptRepository

	// Retries bounds how many times a conflicting reservation is attempted.
	Retries    int
	RetryDelay time.Duration
}

func (bg *BookingGeneric) CheckAvailability(ctx context.Context, itemID int64, r model.DateRange) (availability.Result, error) {
	if _, err := model.NewDateRange(r.Start, r.End); err != nil {
		return availability.Result{}, err
	}

	item, err := bg.Store.Items().Get(ctx, itemID)
	if err != nil {
		return availability.Result{}, fmt.Errorf("can't get item: %w", err)
	}

	if !item.Kind.Rentable() {
		return availability.Result{}, model.Validationf("item %d is not rentable", itemID)
	}

	entries, err := bg.Store.Bookings().ActiveOverlapping(ctx, itemID, r)
	if err != nil {
		return availability.Result{}, fmt.Errorf("can't get bookings: %w", err)
	}

	return availability.Calculate(item.TotalStock, r, entries), nil
}

func (bg *BookingGeneric) RequestRental(ctx context.Context, caller model.Caller, req RentalRequest) (entry model.BookingEntry, err error) {
	if err := req.Validate(); err != nil {
		return model.BookingEntry{}, err
	}
	req.Range = model.DateRange{Start: model.Day(req.Range.Start), End: model.Day(req.Range.End)}

	defer func() {
		if !shouldSaveAttempt(err) {
			return
		}

		a := model.ReservationAttempt{
			ItemID:    req.ItemID,
			OwnerID:   caller.ID,
			Range:     req.Range,
			Quantity:  req.Quantity,
			CreatedAt: time.Now(),
		}
		if err == nil {
			a.BookingID = uuid.NullUUID{UUID: entry.ID, Valid: true}
		} else {
			a.Error = err.Error()
		}

		if err := bg.Attempts.Add(ctx, a); err != nil {
			slog.Error("can't save reservation attempt", slog.Any("error", err))
		}
	}()

	err = retryConflicts(ctx, bg.Retries, bg.RetryDelay, func() error {
		var err error
		entry, err = bg.reserve(ctx, caller, req)
		return err
	})

	return entry, err
}

func (bg *BookingGeneric) reserve(ctx context.Context, caller model.Caller, req RentalRequest) (entry model.BookingEntry, err error) {
	ctx, span := tracing.Start(ctx, "booking.reserve", attribute.Int64("item_id", req.ItemID))
	defer func() { tracing.End(span, err) }()

	unlock, err := bg.Locker.Lock(ctx, locker.ItemKey(req.ItemID))
	if err != nil {
		return model.BookingEntry{}, fmt.Errorf("can't lock item %d: %w", req.ItemID, err)
	}
	defer unlock()

	err = bg.Store.WithTx(ctx, func(tx database.Tx) error {
		item, err := tx.Items().GetForUpdate(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("can't get item: %w", err)
		}

		if !item.Kind.Rentable() {
			return model.Validationf("item %d is not rentable", item.ID)
		}

		entries, err := tx.Bookings().ActiveOverlapping(ctx, item.ID, req.Range)
		if err != nil {
			return fmt.Errorf("can't get bookings: %w", err)
		}

		res := availability.Calculate(item.TotalStock, req.Range, entries)
		if res.Available < req.Quantity {
			r := req.Range
			return &model.ShortfallError{
				ItemID:    item.ID,
				Reason:    model.ErrInsufficientAvailability,
				Requested: req.Quantity,
				Available: res.Available,
				Range:     &r,
			}
		}

		now := time.Now()
		entry = model.BookingEntry{
			Base:        model.Base{CreatedAt: now, UpdatedAt: now},
			ID:          uuid.New(),
			ItemID:      item.ID,
			OwnerID:     caller.ID,
			Range:       req.Range,
			Quantity:    req.Quantity,
			Status:      model.StatusRequested,
			Origin:      model.OriginStandalone,
			TotalAmount: model.RentalAmount(req.Quantity, item.PricePerDay, req.Range),
			Deposit:     model.PurchaseAmount(req.Quantity, item.Deposit),
		}

		if err := tx.Bookings().Insert(ctx, entry); err != nil {
			return fmt.Errorf("can't insert booking: %w", err)
		}

		return nil
	})

	return entry, err
}

func (bg *BookingGeneric) ListForOwner(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error) {
	return bg.Store.Bookings().ListByOwner(ctx, caller.ID)
}

func (bg *BookingGeneric) ListForSeller(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error) {
	if caller.Role != model.RoleSeller && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: seller role required", model.ErrForbidden)
	}

	return bg.Store.Bookings().ListBySeller(ctx, caller.ID)
}

func (bg *BookingGeneric) ListAll(ctx context.Context, caller model.Caller) ([]model.BookingEntry, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", model.ErrForbidden)
	}

	return bg.Store.Bookings().ListAll(ctx)
}

func (bg *BookingGeneric) SetBookingStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.BookingEntry, error) {
	if !status.Valid() {
		return model.BookingEntry{}, model.Validationf("unknown status %q", status)
	}

	entry, err := bg.Store.Bookings().Get(ctx, id)
	if err != nil {
		return model.BookingEntry{}, fmt.Errorf("can't get booking: %w", err)
	}

	err = retryConflicts(ctx, bg.Retries, bg.RetryDelay, func() error {
		unlock, err := bg.Locker.Lock(ctx, locker.ItemKey(entry.ItemID))
		if err != nil {
			return fmt.Errorf("can't lock item %d: %w", entry.ItemID, err)
		}
		defer unlock()

		return bg.Store.WithTx(ctx, func(tx database.Tx) error {
			item, err := tx.Items().GetForUpdate(ctx, entry.ItemID)
			if err != nil {
				return fmt.Errorf("can't get item: %w", err)
			}

			if !canManage(caller, item) {
				return fmt.Errorf("%w: booking %s belongs to another seller", model.ErrForbidden, id)
			}

			// re-read under the lock, the status may have moved meanwhile
			entry, err = tx.Bookings().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("can't get booking: %w", err)
			}

			if err := model.Transition(entry.Status, status); err != nil {
				return err
			}

			if err := tx.Bookings().SetStatus(ctx, id, status); err != nil {
				return fmt.Errorf("can't set booking status: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return model.BookingEntry{}, err
	}

	entry.Status = status
	entry.UpdatedAt = time.Now()
	return entry, nil
}

func (bg *BookingGeneric) Calendar(ctx context.Context, caller model.Caller, itemID int64, r model.DateRange) ([]availability.DayUsage, error) {
	if _, err := model.NewDateRange(r.Start, r.End); err != nil {
		return nil, err
	}

	item, err := bg.Store.Items().Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("can't get item: %w", err)
	}

	if !canManage(caller, item) {
		return nil, fmt.Errorf("%w: item %d belongs to another seller", model.ErrForbidden, itemID)
	}

	entries, err := bg.Store.Bookings().ActiveOverlapping(ctx, itemID, r)
	if err != nil {
		return nil, fmt.Errorf("can't get bookings: %w", err)
	}

	return availability.DailyUsage(r, entries), nil
}

// canManage reports whether caller may change bookings of the item.
func canManage(caller model.Caller, item model.Item) bool {
	return caller.IsAdmin() || (caller.Role == model.RoleSeller && caller.ID == item.SellerID)
}

// shouldSaveAttempt skips requests that never reached the availability check.
func shouldSaveAttempt(err error) bool {
	return err == nil || errors.Is(err, model.ErrInsufficientAvailability)
}

// sortedItemIDs returns distinct ids in ascending order, the order locks are taken in.
func sortedItemIDs(ids []int64) []int64 {
	res := slices.Clone(ids)
	slices.Sort(res)
	return slices.Compact(res)
}
