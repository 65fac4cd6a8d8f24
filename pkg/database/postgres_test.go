package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/database/pgtest"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	addr := pgtest.Start(t)

	db, closeFn, err := New(addr, pgtest.Database, pgtest.User, pgtest.Password)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	require.NoError(t, Migrate(db))
	// running twice is a no-op
	require.NoError(t, Migrate(db))

	return db
}

func TestPostgres(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgres(db)
	ctx := context.Background()

	item := model.Item{
		SellerID:    "seller-1",
		Title:       "tent",
		Kind:        model.KindBoth,
		Price:       decimal.RequireFromString("120.50"),
		PricePerDay: decimal.NewFromInt(15),
		Deposit:     decimal.NewFromInt(40),
		TotalStock:  3,
	}
	require.NoError(t, store.Items().Create(ctx, &item))
	require.NotZero(t, item.ID)

	t.Run("items", func(t *testing.T) {
		got, err := store.Items().Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.Title, got.Title)
		assert.True(t, item.Price.Equal(got.Price))
		assert.Equal(t, model.KindBoth, got.Kind)

		_, err = store.Items().Get(ctx, 424242)
		assert.ErrorIs(t, err, model.ErrNotFound)

		page, total, err := store.Items().GetPage(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, page, 1)
	})

	t.Run("decrement stock", func(t *testing.T) {
		err := store.Items().DecrementStock(ctx, item.ID, 5)
		require.ErrorIs(t, err, model.ErrInsufficientStock)

		var short *model.ShortfallError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 3, short.Available)
	})

	r1, err := model.ParseDateRange("2025-01-10", "2025-01-15")
	require.NoError(t, err)
	r2, err := model.ParseDateRange("2025-01-16", "2025-01-20")
	require.NoError(t, err)

	entry := model.BookingEntry{
		ID: uuid.New(), ItemID: item.ID, OwnerID: "buyer-1", Range: r1, Quantity: 2,
		Status: model.StatusRequested, Origin: model.OriginStandalone,
		TotalAmount: decimal.NewFromInt(180), Deposit: decimal.NewFromInt(80),
		Base: model.Base{CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	later := entry
	later.ID, later.Range = uuid.New(), r2

	t.Run("bookings", func(t *testing.T) {
		require.NoError(t, store.Bookings().Insert(ctx, entry, later))

		got, err := store.Bookings().Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, r1.Start.Equal(got.Range.Start))
		assert.True(t, r1.End.Equal(got.Range.End))
		assert.Equal(t, model.StatusRequested, got.Status)
		assert.False(t, got.OrderID.Valid)

		q, err := model.ParseDateRange("2025-01-15", "2025-01-15")
		require.NoError(t, err)

		overlapping, err := store.Bookings().ActiveOverlapping(ctx, item.ID, q)
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, entry.ID, overlapping[0].ID)

		require.NoError(t, store.Bookings().SetStatus(ctx, entry.ID, model.StatusRejected))

		overlapping, err = store.Bookings().ActiveOverlapping(ctx, item.ID, q)
		require.NoError(t, err)
		assert.Empty(t, overlapping)

		err = store.Bookings().SetStatus(ctx, uuid.New(), model.StatusApproved)
		assert.ErrorIs(t, err, model.ErrNotFound)

		bySeller, err := store.Bookings().ListBySeller(ctx, "seller-1")
		require.NoError(t, err)
		assert.Len(t, bySeller, 2)

		byOwner, err := store.Bookings().ListByOwner(ctx, "buyer-1")
		require.NoError(t, err)
		assert.Len(t, byOwner, 2)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			if _, err := tx.Items().GetForUpdate(ctx, item.ID); err != nil {
				return err
			}
			if err := tx.Items().DecrementStock(ctx, item.ID, 1); err != nil {
				return err
			}
			return tx.Items().DecrementStock(ctx, item.ID, 10)
		})
		require.ErrorIs(t, err, model.ErrInsufficientStock)

		got, err := store.Items().Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.TotalStock)
	})

	t.Run("orders and carts", func(t *testing.T) {
		cart := model.Cart{OwnerID: "buyer-1"}
		cart.Add(model.CartLine{ItemID: item.ID, Type: model.LineRental, Quantity: 1, Range: &r2})
		require.NoError(t, store.Carts().Save(ctx, &cart))

		got, err := store.Carts().Get(ctx, "buyer-1")
		require.NoError(t, err)
		require.Len(t, got.Lines, 1)
		assert.True(t, r2.End.Equal(got.Lines[0].Range.End))

		_, err = store.Carts().Get(ctx, "nobody")
		assert.ErrorIs(t, err, model.ErrNotFound)

		now := time.Now()
		order := model.Order{
			Base:          model.Base{CreatedAt: now, UpdatedAt: now},
			ID:            uuid.New(),
			BuyerID:       "buyer-1",
			Lines:         []model.OrderLine{{ItemID: item.ID, Type: model.LinePurchase, Quantity: 1, UnitPrice: item.Price, Amount: item.Price}},
			Total:         item.Price,
			PaymentStatus: model.PaymentPaid,
			Status:        model.StatusRequested,
			Shipping:      model.ShippingInfo{Name: "Jane", City: "Springfield"},
		}
		require.NoError(t, store.Orders().Insert(ctx, &order))
		require.NoError(t, store.Orders().SetStatus(ctx, order.ID, model.StatusApproved))

		stored, err := store.Orders().Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, stored.Status)
		assert.Equal(t, "Springfield", stored.Shipping.City)
		require.Len(t, stored.Lines, 1)
		assert.True(t, item.Price.Equal(stored.Total))

		orders, err := store.Orders().ListByBuyer(ctx, "buyer-1")
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("attempts", func(t *testing.T) {
		ad := &AttemptDatabase{DB: db}
		err := ad.Add(ctx,
			model.ReservationAttempt{ItemID: item.ID, OwnerID: "buyer-1", Range: r1, Quantity: 1, BookingID: uuid.NullUUID{UUID: entry.ID, Valid: true}},
			model.ReservationAttempt{ItemID: item.ID, OwnerID: "buyer-2", Range: r1, Quantity: 9, Error: "insufficient availability"},
		)
		require.NoError(t, err)

		var n int
		require.NoError(t, db.QueryRow(`select count(*) from reservation_attempts where error is not null`).Scan(&n))
		assert.Equal(t, 1, n)
	})
}
