package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shipping = model.ShippingInfo{Name: "Jane", Email: "jane@example.com", Address: "1 Main st", City: "Springfield", ZipCode: "12345"}

func purchaseLine(itemID int64, qty int) model.CartLine {
	return model.CartLine{ItemID: itemID, Type: model.LinePurchase, Quantity: qty}
}

func rentalLine(t *testing.T, itemID int64, qty int, start, end string) model.CartLine {
	r := rng(t, start, end)
	return model.CartLine{ItemID: itemID, Type: model.LineRental, Quantity: qty, Range: &r}
}

func TestOrder_CheckoutCommitsEverything(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sold := e.item(t, model.KindPurchase, 5)
	rented := e.item(t, model.KindRental, 2)

	_, err := e.order.AddLine(ctx, buyer, purchaseLine(sold.ID, 5))
	require.NoError(t, err)
	_, err = e.order.AddLine(ctx, buyer, rentalLine(t, rented.ID, 1, "2025-01-10", "2025-01-12"))
	require.NoError(t, err)

	order, err := e.order.Checkout(ctx, buyer, shipping)
	require.NoError(t, err)

	assert.Equal(t, buyer.ID, order.BuyerID)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, model.StatusRequested, order.Status)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "500", order.Lines[0].Amount.String())
	assert.Equal(t, "30", order.Lines[1].Amount.String())
	assert.Equal(t, "530", order.Total.String())
	assert.True(t, order.Lines[1].BookingID.Valid)

	item, err := e.store.Items().Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.TotalStock)

	bookings, err := e.store.Bookings().ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, model.OriginOrderLine, bookings[0].Origin)
	assert.Equal(t, model.StatusRequested, bookings[0].Status)
	assert.Equal(t, order.Lines[1].BookingID.UUID, bookings[0].ID)

	cart, err := e.order.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, cart.Empty())

	stored, err := e.store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, shipping, stored.Shipping)
}

func TestOrder_CheckoutIsAllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sold := e.item(t, model.KindPurchase, 5)
	rented := e.item(t, model.KindRental, 1)

	_, err := e.booking.RequestRental(ctx, buyer2, RentalRequest{ItemID: rented.ID, Range: rng(t, "2025-01-01", "2025-01-31"), Quantity: 1})
	require.NoError(t, err)

	_, err = e.order.AddLine(ctx, buyer, purchaseLine(sold.ID, 2))
	require.NoError(t, err)
	_, err = e.order.AddLine(ctx, buyer, rentalLine(t, rented.ID, 1, "2025-01-10", "2025-01-12"))
	require.NoError(t, err)

	_, err = e.order.Checkout(ctx, buyer, shipping)
	require.ErrorIs(t, err, model.ErrInsufficientAvailability)

	var short *model.ShortfallError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, rented.ID, short.ItemID)
	assert.Equal(t, 0, short.Available)

	item, err := e.store.Items().Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, item.TotalStock)

	cart, err := e.order.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)

	orders, err := e.order.ListOrders(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrder_CheckoutRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.order.Checkout(ctx, buyer, shipping)
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		e := newEnv(t)
		it := e.item(t, model.KindPurchase, 2)

		_, err := e.order.AddLine(ctx, buyer, purchaseLine(it.ID, 3))
		require.NoError(t, err)

		_, err = e.order.Checkout(ctx, buyer, shipping)
		require.ErrorIs(t, err, model.ErrInsufficientStock)

		var short *model.ShortfallError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 3, short.Requested)
		assert.Equal(t, 2, short.Available)
	})

	t.Run("rental lines of the same cart count against each other", func(t *testing.T) {
		e := newEnv(t)
		it := e.item(t, model.KindRental, 2)

		_, err := e.order.AddLine(ctx, buyer, rentalLine(t, it.ID, 1, "2025-02-01", "2025-02-05"))
		require.NoError(t, err)
		_, err = e.order.AddLine(ctx, buyer, rentalLine(t, it.ID, 2, "2025-02-05", "2025-02-07"))
		require.NoError(t, err)

		_, err = e.order.Checkout(ctx, buyer, shipping)
		require.ErrorIs(t, err, model.ErrInsufficientAvailability)

		var short *model.ShortfallError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 1, short.Available)
	})

	t.Run("purchase can't take units promised to future rentals", func(t *testing.T) {
		e := newEnv(t)
		it := e.item(t, model.KindBoth, 2)

		_, err := e.booking.RequestRental(ctx, buyer2, RentalRequest{ItemID: it.ID, Range: rng(t, "2024-06-01", "2024-06-03"), Quantity: 2})
		require.NoError(t, err)

		_, err = e.order.AddLine(ctx, buyer, purchaseLine(it.ID, 1))
		require.NoError(t, err)

		_, err = e.order.Checkout(ctx, buyer, shipping)
		require.ErrorIs(t, err, model.ErrInsufficientStock)

		var short *model.ShortfallError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, 0, short.Available)
	})

	t.Run("past rentals don't block purchases", func(t *testing.T) {
		e := newEnv(t)
		it := e.item(t, model.KindBoth, 2)

		_, err := e.booking.RequestRental(ctx, buyer2, RentalRequest{ItemID: it.ID, Range: rng(t, "2024-01-01", "2024-01-03"), Quantity: 2})
		require.NoError(t, err)

		_, err = e.order.AddLine(ctx, buyer, purchaseLine(it.ID, 2))
		require.NoError(t, err)

		_, err = e.order.Checkout(ctx, buyer, shipping)
		require.NoError(t, err)
	})

	t.Run("purchase in the same cart shrinks rental capacity", func(t *testing.T) {
		e := newEnv(t)
		it := e.item(t, model.KindBoth, 2)

		_, err := e.order.AddLine(ctx, buyer, rentalLine(t, it.ID, 2, "2025-03-01", "2025-03-02"))
		require.NoError(t, err)
		_, err = e.order.AddLine(ctx, buyer, purchaseLine(it.ID, 1))
		require.NoError(t, err)

		_, err = e.order.Checkout(ctx, buyer, shipping)
		require.ErrorIs(t, err, model.ErrInsufficientAvailability)
	})
}

func TestOrder_AddLineRejectsLongRentals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	it := e.item(t, model.KindRental, 1)

	r := model.DateRange{Start: day("2025-01-01"), End: day("2026-06-01")}
	_, err := e.order.AddLine(ctx, buyer, model.CartLine{ItemID: it.ID, Type: model.LineRental, Quantity: 1, Range: &r})
	assert.ErrorIs(t, err, model.ErrValidation)

	cart, err := e.order.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestOrder_Cart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sold := e.item(t, model.KindPurchase, 5)
	rented := e.item(t, model.KindRental, 1)

	cart, err := e.order.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, cart.Empty())
	assert.Equal(t, buyer.ID, cart.OwnerID)

	_, err = e.order.AddLine(ctx, buyer, purchaseLine(sold.ID, 1))
	require.NoError(t, err)
	cart, err = e.order.AddLine(ctx, buyer, purchaseLine(sold.ID, 2))
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)

	// cart lines hold nothing, even past the item's capacity
	cart, err = e.order.AddLine(ctx, buyer, rentalLine(t, rented.ID, 4, "2025-01-01", "2025-01-02"))
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)

	_, err = e.order.AddLine(ctx, buyer, rentalLine(t, sold.ID, 1, "2025-01-01", "2025-01-02"))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.order.AddLine(ctx, buyer, purchaseLine(rented.ID, 1))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.order.AddLine(ctx, buyer, purchaseLine(999, 1))
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.order.AddLine(ctx, buyer, purchaseLine(sold.ID, 0))
	assert.ErrorIs(t, err, model.ErrValidation)

	cart, err = e.order.RemoveItem(ctx, buyer, sold.ID)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, rented.ID, cart.Lines[0].ItemID)

	_, err = e.order.RemoveItem(ctx, buyer, sold.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	other, err := e.order.GetCart(ctx, buyer2)
	require.NoError(t, err)
	assert.True(t, other.Empty())
}

func TestOrder_ConcurrentCheckoutsForLastUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	it := e.item(t, model.KindRental, 1)

	const n = 16
	callers := make([]model.Caller, n)
	for i := range callers {
		callers[i] = model.Caller{ID: fmt.Sprintf("user-%d", i), Role: model.RoleCustomer}
		_, err := e.order.AddLine(ctx, callers[i], rentalLine(t, it.ID, 1, "2025-09-01", "2025-09-03"))
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)

	for _, c := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := e.order.Checkout(ctx, c, shipping)
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, model.ErrInsufficientAvailability)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	for _, du := range e.store.Usage(it.ID, rng(t, "2025-09-01", "2025-09-03")) {
		assert.Equal(t, 1, du.Used)
	}
}

func TestOrder_SetOrderStatusCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	it := e.item(t, model.KindRental, 2)

	_, err := e.order.AddLine(ctx, buyer, rentalLine(t, it.ID, 1, "2025-10-01", "2025-10-02"))
	require.NoError(t, err)
	_, err = e.order.AddLine(ctx, buyer, rentalLine(t, it.ID, 1, "2025-10-05", "2025-10-06"))
	require.NoError(t, err)

	order, err := e.order.Checkout(ctx, buyer, shipping)
	require.NoError(t, err)

	bookings, err := e.store.Bookings().ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 2)

	// one line is rejected on its own before the order moves on
	_, err = e.booking.SetBookingStatus(ctx, seller, bookings[0].ID, model.StatusRejected)
	require.NoError(t, err)

	_, err = e.order.SetOrderStatus(ctx, buyer, order.ID, model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrForbidden)

	updated, err := e.order.SetOrderStatus(ctx, admin, order.ID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)

	rejected, err := e.store.Bookings().Get(ctx, bookings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	approved, err := e.store.Bookings().Get(ctx, bookings[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)

	_, err = e.order.SetOrderStatus(ctx, admin, order.ID, model.StatusRequested)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = e.order.SetOrderStatus(ctx, admin, uuid.New(), model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.order.SetOrderStatus(ctx, admin, order.ID, model.StatusReturned)
	assert.ErrorIs(t, err, model.ErrValidation)

	for _, st := range []model.Status{model.StatusOngoing, model.StatusReturned} {
		_, err = e.order.SetOrderStatus(ctx, admin, order.ID, st)
		require.NoError(t, err)
	}

	res, err := e.booking.CheckAvailability(ctx, it.ID, rng(t, "2025-10-01", "2025-10-06"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Available)
}
