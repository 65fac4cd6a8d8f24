package database

import (
	"context"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type BookingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (model.BookingEntry, error)
	// ActiveOverlapping returns entries for itemID whose status consumes capacity
	// and whose range shares at least one day with r.
	ActiveOverlapping(ctx context.Context, itemID int64, r model.DateRange) ([]model.BookingEntry, error)
	Insert(ctx context.Context, entries ...model.BookingEntry) error
	SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.BookingEntry, error)
	// ListBySeller returns bookings of every item sold by sellerID.
	ListBySeller(ctx context.Context, sellerID string) ([]model.BookingEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.BookingEntry, error)
	ListAll(ctx context.Context) ([]model.BookingEntry, error)
}

type BookingDatabase struct {
	q querier
}

const bookingColumns = `b.id, b.item_id, b.order_id, b.owner_id, b.start_date, b.end_date, b.quantity,
	b.status, b.origin, b.total_amount, b.deposit, b.created_at, b.updated_at`

func scanBooking(s scanner) (model.BookingEntry, error) {
	var b model.BookingEntry
	err := s.Scan(&b.ID, &b.ItemID, &b.OrderID, &b.OwnerID, &b.Range.Start, &b.Range.End, &b.Quantity,
		&b.Status, &b.Origin, &b.TotalAmount, &b.Deposit, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}

	b.Range.Start, b.Range.End = model.Day(b.Range.Start), model.Day(b.Range.End)
	return b, nil
}

func (bd *BookingDatabase) Get(ctx context.Context, id uuid.UUID) (model.BookingEntry, error) {
	q := `select ` + bookingColumns + ` from bookings b where b.id = $1`

	b, err := scanBooking(bd.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.BookingEntry{}, fmt.Errorf("can't get booking %s: %w", id, mapError(err))
	}

	return b, nil
}

func (bd *BookingDatabase) ActiveOverlapping(ctx context.Context, itemID int64, r model.DateRange) ([]model.BookingEntry, error) {
	q := `
		select ` + bookingColumns + `
		from bookings b
		where b.item_id = $1
		  and b.status in ('requested', 'approved', 'ongoing')
		  and b.start_date <= $3
		  and b.end_date >= $2
	`

	return bd.list(ctx, q, itemID, r.Start, r.End)
}

func (bd *BookingDatabase) Insert(ctx context.Context, entries ...model.BookingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const q = `
		insert into bookings (id, item_id, order_id, owner_id, start_date, end_date, quantity,
			status, origin, total_amount, deposit, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, b := range entries {
		_, err := bd.q.ExecContext(ctx, q, b.ID, b.ItemID, b.OrderID, b.OwnerID, b.Range.Start, b.Range.End, b.Quantity,
			string(b.Status), string(b.Origin), b.TotalAmount, b.Deposit, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("can't insert booking %s: %w", b.ID, mapError(err))
		}
	}

	return nil
}

func (bd *BookingDatabase) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	const q = `
		update bookings
		set status = $1, updated_at = $2
		where id = $3
	`

	res, err := bd.q.ExecContext(ctx, q, string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("can't update booking's status: %w", mapError(err))
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("booking %s does not exist: %w", id, model.ErrNotFound)
	}

	return nil
}

func (bd *BookingDatabase) ListByOwner(ctx context.Context, ownerID string) ([]model.BookingEntry, error) {
	q := `select ` + bookingColumns + ` from bookings b where b.owner_id = $1 order by b.created_at desc`
	return bd.list(ctx, q, ownerID)
}

func (bd *BookingDatabase) ListBySeller(ctx context.Context, sellerID string) ([]model.BookingEntry, error) {
	q := `
		select ` + bookingColumns + `
		from bookings b
		join items i on i.id = b.item_id
		where i.seller_id = $1
		order by b.created_at desc
	`
	return bd.list(ctx, q, sellerID)
}

func (bd *BookingDatabase) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.BookingEntry, error) {
	q := `select ` + bookingColumns + ` from bookings b where b.order_id = $1 order by b.item_id`
	return bd.list(ctx, q, orderID)
}

func (bd *BookingDatabase) ListAll(ctx context.Context) ([]model.BookingEntry, error) {
	q := `select ` + bookingColumns + ` from bookings b order by b.created_at desc`
	return bd.list(ctx, q)
}

func (bd *BookingDatabase) list(ctx context.Context, q string, args ...any) ([]model.BookingEntry, error) {
	rows, err := bd.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't query bookings: %w", mapError(err))
	}
	defer rows.Close()

	var bs []model.BookingEntry
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan booking: %w", err)
		}

		bs = append(bs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bookings: %w", mapError(err))
	}

	return bs, nil
}
