package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

type CartRepository interface {
	// Get returns model.ErrNotFound if the owner has no cart yet.
	Get(ctx context.Context, ownerID string) (model.Cart, error)
	// GetForUpdate is Get that also locks the cart until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, ownerID string) (model.Cart, error)
	// Save creates or replaces the owner's cart.
	Save(ctx context.Context, c *model.Cart) error
}

type CartDatabase struct {
	q querier
}

func (cd *CartDatabase) Get(ctx context.Context, ownerID string) (model.Cart, error) {
	return cd.get(ctx, ownerID, false)
}

func (cd *CartDatabase) GetForUpdate(ctx context.Context, ownerID string) (model.Cart, error) {
	return cd.get(ctx, ownerID, true)
}

func (cd *CartDatabase) get(ctx context.Context, ownerID string, lock bool) (model.Cart, error) {
	q := `
		select owner_id, lines, created_at, updated_at
		from carts
		where owner_id = $1
	`
	if lock {
		q += ` for update`
	}

	var (
		c     model.Cart
		lines []byte
	)

	err := cd.q.QueryRowContext(ctx, q, ownerID).Scan(&c.OwnerID, &lines, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Cart{}, fmt.Errorf("can't get cart of %s: %w", ownerID, mapError(err))
	}

	if err := json.Unmarshal(lines, &c.Lines); err != nil {
		return model.Cart{}, fmt.Errorf("can't unmarshal cart lines: %w", err)
	}

	return c, nil
}

func (cd *CartDatabase) Save(ctx context.Context, c *model.Cart) error {
	if c.Lines == nil {
		c.Lines = []model.CartLine{}
	}

	lines, err := json.Marshal(c.Lines)
	if err != nil {
		return fmt.Errorf("can't marshal cart lines: %w", err)
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	const q = `
		insert into carts (owner_id, lines, created_at, updated_at)
		values ($1, $2, $3, $4)
		on conflict (owner_id) do update
		set lines = excluded.lines, updated_at = excluded.updated_at
	`

	if _, err := cd.q.ExecContext(ctx, q, c.OwnerID, lines, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("can't save cart of %s: %w", c.OwnerID, mapError(err))
	}

	return nil
}
