package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type OrderRepository interface {
	Insert(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id uuid.UUID) (model.Order, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	ListByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
}

type OrderDatabase struct {
	q querier
}

const orderColumns = `id, buyer_id, lines, total, payment_status, status, shipping, created_at, updated_at`

func scanOrder(s scanner) (model.Order, error) {
	var (
		o        model.Order
		lines    []byte
		shipping []byte
	)

	err := s.Scan(&o.ID, &o.BuyerID, &lines, &o.Total, &o.PaymentStatus, &o.Status, &shipping, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return o, fmt.Errorf("can't unmarshal order lines: %w", err)
	}

	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return o, fmt.Errorf("can't unmarshal shipping info: %w", err)
	}

	return o, nil
}

func (od *OrderDatabase) Insert(ctx context.Context, o *model.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("can't marshal order lines: %w", err)
	}

	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("can't marshal shipping info: %w", err)
	}

	const q = `
		insert into orders (id, buyer_id, lines, total, payment_status, status, shipping, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = od.q.ExecContext(ctx, q, o.ID, o.BuyerID, lines, o.Total, string(o.PaymentStatus), string(o.Status),
		shipping, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("can't insert order: %w", mapError(err))
	}

	return nil
}

func (od *OrderDatabase) Get(ctx context.Context, id uuid.UUID) (model.Order, error) {
	q := `select ` + orderColumns + ` from orders where id = $1`

	o, err := scanOrder(od.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Order{}, fmt.Errorf("can't get order %s: %w", id, mapError(err))
	}

	return o, nil
}

func (od *OrderDatabase) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	const q = `
		update orders
		set status = $1, updated_at = $2
		where id = $3
	`

	res, err := od.q.ExecContext(ctx, q, string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("can't update order's status: %w", mapError(err))
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("order %s does not exist: %w", id, model.ErrNotFound)
	}

	return nil
}

func (od *OrderDatabase) ListByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	q := `select ` + orderColumns + ` from orders where buyer_id = $1 order by created_at desc`

	rows, err := od.q.QueryContext(ctx, q, buyerID)
	if err != nil {
		return nil, fmt.Errorf("can't query orders: %w", mapError(err))
	}
	defer rows.Close()

	var os []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan order: %w", err)
		}

		os = append(os, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over orders: %w", mapError(err))
	}

	return os, nil
}
