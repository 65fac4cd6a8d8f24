package database

import (
	"context"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

type ItemRepository interface {
	Get(ctx context.Context, id int64) (model.Item, error)
	// GetForUpdate reads the item and locks it until the surrounding transaction ends.
	// Every write to the item's bookings or stock goes through this lock.
	GetForUpdate(ctx context.Context, id int64) (model.Item, error)
	Create(ctx context.Context, item *model.Item) error
	// DecrementStock atomically lowers total stock by amount, failing with
	// model.ErrInsufficientStock if that would make it negative.
	DecrementStock(ctx context.Context, id int64, amount int) error
	GetPage(ctx context.Context, num, size int) ([]model.Item, int, error)
}

type ItemDatabase struct {
	q querier
}

const itemColumns = `id, seller_id, title, category, kind, price, price_per_day, deposit,
	total_stock, low_stock_threshold, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.Item, error) {
	var it model.Item
	err := s.Scan(&it.ID, &it.SellerID, &it.Title, &it.Category, &it.Kind, &it.Price, &it.PricePerDay, &it.Deposit,
		&it.TotalStock, &it.LowStockThreshold, &it.Version, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (i *ItemDatabase) Get(ctx context.Context, id int64) (model.Item, error) {
	q := `select ` + itemColumns + ` from items where id = $1`

	it, err := scanItem(i.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Item{}, fmt.Errorf("can't get item %d: %w", id, mapError(err))
	}

	return it, nil
}

func (i *ItemDatabase) GetForUpdate(ctx context.Context, id int64) (model.Item, error) {
	q := `select ` + itemColumns + ` from items where id = $1 for update`

	it, err := scanItem(i.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Item{}, fmt.Errorf("can't lock item %d: %w", id, mapError(err))
	}

	return it, nil
}

func (i *ItemDatabase) Create(ctx context.Context, item *model.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	const q = `
		insert into items (seller_id, title, category, kind, price, price_per_day, deposit,
			total_stock, low_stock_threshold, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		returning id
	`

	now := time.Now()
	err := i.q.QueryRowContext(ctx, q, item.SellerID, item.Title, item.Category, string(item.Kind), item.Price,
		item.PricePerDay, item.Deposit, item.TotalStock, item.LowStockThreshold, now).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("can't insert item: %w", mapError(err))
	}

	item.CreatedAt, item.UpdatedAt = now, now
	return nil
}

func (i *ItemDatabase) DecrementStock(ctx context.Context, id int64, amount int) error {
	const q = `
		update items
		set total_stock = total_stock - $1, version = version + 1, updated_at = $2
		where id = $3
		  and total_stock >= $1
	`

	res, err := i.q.ExecContext(ctx, q, amount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("can't decrement stock of item %d: %w", id, mapError(err))
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	} else if affected != 1 {
		// either the item is gone or there is not enough stock; tell which
		it, err := i.Get(ctx, id)
		if err != nil {
			return err
		}
		return &model.ShortfallError{ItemID: id, Reason: model.ErrInsufficientStock, Requested: amount, Available: it.TotalStock}
	}

	return nil
}

func (i *ItemDatabase) GetPage(ctx context.Context, num, size int) ([]model.Item, int, error) {
	q := `
		select count(*) from items
	`
	var total int
	if err := i.q.QueryRowContext(ctx, q).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count items: %w", mapError(err))
	}

	offset := (num - 1) * size
	q = `select ` + itemColumns + ` from items order by id limit $1 offset $2`

	rows, err := i.q.QueryContext(ctx, q, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("can't query items: %w", mapError(err))
	}
	defer rows.Close()

	items := make([]model.Item, 0, size)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("can't scan item: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over items: %w", mapError(err))
	}

	return items, total, nil
}
