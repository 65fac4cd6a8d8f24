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
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type Order interface {
	GetCart(ctx context.Context, caller model.Caller) (model.Cart, error)
	AddLine(ctx context.Context, caller model.Caller, line model.CartLine) (model.Cart, error)
	RemoveItem(ctx context.Context, caller model.Caller, itemID int64) (model.Cart, error)
	// Checkout turns the caller's cart into an order. Either every line is
	// committed together with the emptied cart, or nothing is.
	Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (model.Order, error)
	ListOrders(ctx context.Context, caller model.Caller) ([]model.Order, error)
	// SetOrderStatus moves the order and every order-line booking that can follow it.
	SetOrderStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.Order, error)
}

type OrderGeneric struct {
	Store  database.Store
	Locker locker.Locker

	Retries    int
	RetryDelay time.Duration

	now func() time.Time
}

func (og *OrderGeneric) today() time.Time {
	if og.now != nil {
		return model.Day(og.now())
	}
	return model.Day(time.Now())
}

func (og *OrderGeneric) GetCart(ctx context.Context, caller model.Caller) (model.Cart, error) {
	cart, err := og.Store.Carts().Get(ctx, caller.ID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.Cart{OwnerID: caller.ID, Lines: []model.CartLine{}}, nil
	case err != nil:
		return model.Cart{}, fmt.Errorf("can't get cart: %w", err)
	}

	return cart, nil
}

// AddLine checks that the item can be bought or rented the requested way.
// It does not check availability: cart lines hold no capacity until checkout.
func (og *OrderGeneric) AddLine(ctx context.Context, caller model.Caller, line model.CartLine) (model.Cart, error) {
	if line.Range != nil {
		r, err := model.NewDateRange(line.Range.Start, line.Range.End)
		if err != nil {
			return model.Cart{}, err
		}
		line.Range = &r
	}

	if err := line.Validate(); err != nil {
		return model.Cart{}, err
	}

	item, err := og.Store.Items().Get(ctx, line.ItemID)
	if err != nil {
		return model.Cart{}, fmt.Errorf("can't get item: %w", err)
	}

	switch {
	case line.Type == model.LinePurchase && !item.Kind.Purchasable():
		return model.Cart{}, model.Validationf("item %d can't be purchased", item.ID)
	case line.Type == model.LineRental && !item.Kind.Rentable():
		return model.Cart{}, model.Validationf("item %d can't be rented", item.ID)
	}

	return og.updateCart(ctx, caller, func(c *model.Cart) error {
		c.Add(line)
		return nil
	})
}

func (og *OrderGeneric) RemoveItem(ctx context.Context, caller model.Caller, itemID int64) (model.Cart, error) {
	return og.updateCart(ctx, caller, func(c *model.Cart) error {
		if c.RemoveItem(itemID) == 0 {
			return fmt.Errorf("item %d is not in the cart: %w", itemID, model.ErrNotFound)
		}
		return nil
	})
}

func (og *OrderGeneric) updateCart(ctx context.Context, caller model.Caller, fn func(*model.Cart) error) (model.Cart, error) {
	var cart model.Cart

	err := og.Store.WithTx(ctx, func(tx database.Tx) error {
		var err error
		cart, err = tx.Carts().GetForUpdate(ctx, caller.ID)
		switch {
		case errors.Is(err, model.ErrNotFound):
			cart = model.Cart{OwnerID: caller.ID}
		case err != nil:
			return fmt.Errorf("can't get cart: %w", err)
		}

		if err := fn(&cart); err != nil {
			return err
		}

		if err := tx.Carts().Save(ctx, &cart); err != nil {
			return fmt.Errorf("can't save cart: %w", err)
		}

		return nil
	})
	if err != nil {
		return model.Cart{}, err
	}

	return cart, nil
}

func (og *OrderGeneric) Checkout(ctx context.Context, caller model.Caller, shipping model.ShippingInfo) (order model.Order, err error) {
	ctx, span := tracing.Start(ctx, "order.checkout", attribute.String("user_id", caller.ID))
	defer func() { tracing.End(span, err) }()

	err = retryConflicts(ctx, og.Retries, og.RetryDelay, func() error {
		cart, err := og.Store.Carts().Get(ctx, caller.ID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("can't get cart: %w", err)
		}
		if cart.Empty() {
			return model.Validationf("cart is empty")
		}

		locked := sortedItemIDs(cart.ItemIDs())
		keys := make([]string, 0, len(locked))
		for _, itemID := range locked {
			keys = append(keys, locker.ItemKey(itemID))
		}

		unlock, err := locker.LockAll(ctx, og.Locker, keys...)
		if err != nil {
			return fmt.Errorf("can't lock cart items: %w", err)
		}
		defer unlock()

		return og.Store.WithTx(ctx, func(tx database.Tx) error {
			var err error
			order, err = og.commit(ctx, tx, caller, shipping, locked)
			return err
		})
	})
	if err != nil {
		return model.Order{}, err
	}

	return order, nil
}

// commit runs inside the checkout transaction with every cart item locked.
func (og *OrderGeneric) commit(ctx context.Context, tx database.Tx, caller model.Caller, shipping model.ShippingInfo, locked []int64) (model.Order, error) {
	// the cart may have changed since it was read outside the lock
	cart, err := tx.Carts().GetForUpdate(ctx, caller.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.Order{}, fmt.Errorf("can't get cart: %w", err)
	}
	if cart.Empty() {
		return model.Order{}, model.Validationf("cart is empty")
	}

	ids := sortedItemIDs(cart.ItemIDs())
	for _, id := range ids {
		if _, ok := slices.BinarySearch(locked, id); !ok {
			return model.Order{}, fmt.Errorf("%w: cart changed during checkout", model.ErrConflict)
		}
	}

	items := make(map[int64]*itemDemand, len(ids))
	for _, id := range ids {
		item, err := tx.Items().GetForUpdate(ctx, id)
		if err != nil {
			return model.Order{}, fmt.Errorf("can't get item %d: %w", id, err)
		}
		items[id] = &itemDemand{item: item}
	}

	for _, l := range cart.Lines {
		if l.Type == model.LinePurchase {
			items[l.ItemID].purchased += l.Quantity
		}
	}

	now := time.Now()
	order := model.Order{
		Base:          model.Base{CreatedAt: now, UpdatedAt: now},
		ID:            uuid.New(),
		BuyerID:       caller.ID,
		Lines:         make([]model.OrderLine, 0, len(cart.Lines)),
		Total:         decimal.Zero,
		PaymentStatus: model.PaymentPaid,
		Status:        model.StatusRequested,
		Shipping:      shipping,
	}

	var bookings []model.BookingEntry

	for _, l := range cart.Lines {
		d := items[l.ItemID]

		if err := og.loadEntries(ctx, tx, d, cart); err != nil {
			return model.Order{}, err
		}

		line := model.OrderLine{ItemID: l.ItemID, Type: l.Type, Quantity: l.Quantity}

		switch l.Type {
		case model.LinePurchase:
			if !d.item.Kind.Purchasable() {
				return model.Order{}, model.Validationf("item %d can't be purchased", l.ItemID)
			}

			if avail := d.purchasable(og.today()); avail < l.Quantity {
				return model.Order{}, &model.ShortfallError{
					ItemID:    l.ItemID,
					Reason:    model.ErrInsufficientStock,
					Requested: l.Quantity,
					Available: avail,
				}
			}
			d.checkedOut += l.Quantity

			line.UnitPrice = d.item.Price
			line.Amount = model.PurchaseAmount(l.Quantity, d.item.Price)

		case model.LineRental:
			if !d.item.Kind.Rentable() {
				return model.Order{}, model.Validationf("item %d can't be rented", l.ItemID)
			}

			r := *l.Range
			stock := d.item.TotalStock - d.purchased
			res := availability.Calculate(stock, r, slices.Concat(d.entries, d.pending))
			if res.Available < l.Quantity {
				return model.Order{}, &model.ShortfallError{
					ItemID:    l.ItemID,
					Reason:    model.ErrInsufficientAvailability,
					Requested: l.Quantity,
					Available: res.Available,
					Range:     &r,
				}
			}

			line.UnitPrice = d.item.PricePerDay
			line.Amount = model.RentalAmount(l.Quantity, d.item.PricePerDay, r)
			line.Range = &r

			b := model.BookingEntry{
				Base:        model.Base{CreatedAt: now, UpdatedAt: now},
				ID:          uuid.New(),
				ItemID:      l.ItemID,
				OrderID:     uuid.NullUUID{UUID: order.ID, Valid: true},
				OwnerID:     caller.ID,
				Range:       r,
				Quantity:    l.Quantity,
				Status:      model.StatusRequested,
				Origin:      model.OriginOrderLine,
				TotalAmount: line.Amount,
				Deposit:     model.PurchaseAmount(l.Quantity, d.item.Deposit),
			}
			line.BookingID = uuid.NullUUID{UUID: b.ID, Valid: true}

			d.pending = append(d.pending, b)
			bookings = append(bookings, b)

		default:
			return model.Order{}, model.Validationf("unknown line type %q", l.Type)
		}

		order.Lines = append(order.Lines, line)
		order.Total = order.Total.Add(line.Amount)
	}

	if err := tx.Orders().Insert(ctx, &order); err != nil {
		return model.Order{}, fmt.Errorf("can't insert order: %w", err)
	}

	if len(bookings) > 0 {
		if err := tx.Bookings().Insert(ctx, bookings...); err != nil {
			return model.Order{}, fmt.Errorf("can't insert bookings: %w", err)
		}
	}

	for _, id := range ids {
		d := items[id]
		if d.purchased == 0 {
			continue
		}

		if err := tx.Items().DecrementStock(ctx, id, d.purchased); err != nil {
			return model.Order{}, fmt.Errorf("can't decrement stock: %w", err)
		}

		if left := d.item.TotalStock - d.purchased; left <= d.item.LowStockThreshold {
			slog.Warn("item stock is low",
				slog.Int64("item_id", id),
				slog.Int("stock", left),
				slog.Int("threshold", d.item.LowStockThreshold),
			)
		}
	}

	cart.Lines = cart.Lines[:0]
	if err := tx.Carts().Save(ctx, &cart); err != nil {
		return model.Order{}, fmt.Errorf("can't clear cart: %w", err)
	}

	return order, nil
}

// itemDemand tracks what the cart being checked out asks of one item.
type itemDemand struct {
	item model.Item
	// purchased is the total quantity of all purchase lines for the item.
	purchased int
	// checkedOut is the quantity of purchase lines validated so far.
	checkedOut int
	// entries are committed active bookings from today or the earliest cart date on.
	entries []model.BookingEntry
	loaded  bool
	// pending are bookings for rental lines validated earlier in this checkout.
	pending []model.BookingEntry
}

var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func (og *OrderGeneric) loadEntries(ctx context.Context, tx database.Tx, d *itemDemand, cart model.Cart) error {
	if d.loaded || !d.item.Kind.Rentable() {
		return nil
	}

	from := og.today()
	for _, l := range cart.Lines {
		if l.ItemID == d.item.ID && l.Range != nil && l.Range.Start.Before(from) {
			from = l.Range.Start
		}
	}

	entries, err := tx.Bookings().ActiveOverlapping(ctx, d.item.ID, model.DateRange{Start: from, End: farFuture})
	if err != nil {
		return fmt.Errorf("can't get bookings of item %d: %w", d.item.ID, err)
	}

	d.entries, d.loaded = entries, true
	return nil
}

// purchasable is how many more units may be sold: stock not yet claimed by
// this checkout, minus the peak of committed rentals from today on, since
// a sold unit can't be handed out for rent later.
func (d *itemDemand) purchasable(today time.Time) int {
	peak := 0
	if r, ok := availability.Horizon(today, d.entries); ok {
		peak = availability.Calculate(d.item.TotalStock, r, d.entries).PeakUsage
	}

	return max(0, d.item.TotalStock-peak-d.checkedOut)
}

func (og *OrderGeneric) ListOrders(ctx context.Context, caller model.Caller) ([]model.Order, error) {
	return og.Store.Orders().ListByBuyer(ctx, caller.ID)
}

func (og *OrderGeneric) SetOrderStatus(ctx context.Context, caller model.Caller, id uuid.UUID, status model.Status) (model.Order, error) {
	if !caller.IsAdmin() {
		return model.Order{}, fmt.Errorf("%w: admin role required", model.ErrForbidden)
	}
	if !status.Valid() {
		return model.Order{}, model.Validationf("unknown status %q", status)
	}

	order, err := og.Store.Orders().Get(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("can't get order: %w", err)
	}

	var rented []int64
	for _, l := range order.Lines {
		if l.Type == model.LineRental {
			rented = append(rented, l.ItemID)
		}
	}

	rented = sortedItemIDs(rented)
	keys := make([]string, 0, len(rented))
	for _, itemID := range rented {
		keys = append(keys, locker.ItemKey(itemID))
	}

	err = retryConflicts(ctx, og.Retries, og.RetryDelay, func() error {
		unlock, err := locker.LockAll(ctx, og.Locker, keys...)
		if err != nil {
			return fmt.Errorf("can't lock order items: %w", err)
		}
		defer unlock()

		return og.Store.WithTx(ctx, func(tx database.Tx) error {
			for _, itemID := range rented {
				if _, err := tx.Items().GetForUpdate(ctx, itemID); err != nil {
					return fmt.Errorf("can't get item %d: %w", itemID, err)
				}
			}

			order, err = tx.Orders().Get(ctx, id)
			if err != nil {
				return fmt.Errorf("can't get order: %w", err)
			}

			if err := model.Transition(order.Status, status); err != nil {
				return err
			}

			if err := tx.Orders().SetStatus(ctx, id, status); err != nil {
				return fmt.Errorf("can't set order status: %w", err)
			}

			bookings, err := tx.Bookings().ListByOrder(ctx, id)
			if err != nil {
				return fmt.Errorf("can't get order bookings: %w", err)
			}

			for _, b := range bookings {
				// lines already moved on their own keep their status
				if !b.Status.CanTransitionTo(status) {
					continue
				}
				if err := tx.Bookings().SetStatus(ctx, b.ID, status); err != nil {
					return fmt.Errorf("can't set booking status: %w", err)
				}
			}

			return nil
		})
	})
	if err != nil {
		return model.Order{}, err
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	return order, nil
}
