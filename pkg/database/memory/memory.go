// Package memory is an in-process implementation of database.Store.
// Transactions are serialized and run on a copy of the state, which replaces
// the live state only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/availability"
	"github.com/IlyushaZ/rental-store/pkg/database"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/google/uuid"
)

type state struct {
	nextItemID int64
	items      map[int64]model.Item
	bookings   map[uuid.UUID]model.BookingEntry
	orders     map[uuid.UUID]model.Order
	carts      map[string]model.Cart
	attempts   []model.ReservationAttempt
}

func newState() *state {
	return &state{
		nextItemID: 1,
		items:      make(map[int64]model.Item),
		bookings:   make(map[uuid.UUID]model.BookingEntry),
		orders:     make(map[uuid.UUID]model.Order),
		carts:      make(map[string]model.Cart),
	}
}

func (s *state) clone() *state {
	c := &state{
		nextItemID: s.nextItemID,
		items:      make(map[int64]model.Item, len(s.items)),
		bookings:   make(map[uuid.UUID]model.BookingEntry, len(s.bookings)),
		orders:     make(map[uuid.UUID]model.Order, len(s.orders)),
		carts:      make(map[string]model.Cart, len(s.carts)),
		attempts:   s.attempts,
	}

	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]model.OrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for k, v := range s.carts {
		v.Lines = append([]model.CartLine(nil), v.Lines...)
		c.carts[k] = v
	}

	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ database.Store = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn func(database.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(view{run: func(f func(*state) error) error { return f(work) }}); err != nil {
		return err
	}

	s.st = work
	return nil
}

func (s *Store) autocommit() view {
	return view{run: func(f func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.st)
	}}
}

func (s *Store) Items() database.ItemRepository       { return s.autocommit().Items() }
func (s *Store) Bookings() database.BookingRepository { return s.autocommit().Bookings() }
func (s *Store) Orders() database.OrderRepository     { return s.autocommit().Orders() }
func (s *Store) Carts() database.CartRepository       { return s.autocommit().Carts() }

// Add implements database.AttemptRepository.
func (s *Store) Add(_ context.Context, as ...model.ReservationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.attempts = append(s.st.attempts, as...)
	return nil
}

// Attempts returns a copy of the recorded reservation attempts.
func (s *Store) Attempts() []model.ReservationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.ReservationAttempt(nil), s.st.attempts...)
}

// view runs repository calls either against the live state under the store
// lock or against a transaction's working copy.
type view struct {
	run func(func(*state) error) error
}

func (v view) Items() database.ItemRepository       { return items{v} }
func (v view) Bookings() database.BookingRepository { return bookings{v} }
func (v view) Orders() database.OrderRepository     { return orders{v} }
func (v view) Carts() database.CartRepository       { return carts{v} }

type items struct{ view }

func (i items) Get(_ context.Context, id int64) (it model.Item, err error) {
	err = i.run(func(st *state) error {
		var ok bool
		if it, ok = st.items[id]; !ok {
			return model.ErrNotFound
		}
		return nil
	})
	return
}

func (i items) GetForUpdate(ctx context.Context, id int64) (model.Item, error) {
	return i.Get(ctx, id)
}

func (i items) Create(_ context.Context, item *model.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	return i.run(func(st *state) error {
		now := time.Now()
		item.ID = st.nextItemID
		item.CreatedAt, item.UpdatedAt = now, now
		st.nextItemID++
		st.items[item.ID] = *item
		return nil
	})
}

func (i items) DecrementStock(_ context.Context, id int64, amount int) error {
	return i.run(func(st *state) error {
		it, ok := st.items[id]
		if !ok {
			return model.ErrNotFound
		}
		if it.TotalStock < amount {
			return &model.ShortfallError{ItemID: id, Reason: model.ErrInsufficientStock, Requested: amount, Available: it.TotalStock}
		}

		it.TotalStock -= amount
		it.Version++
		it.UpdatedAt = time.Now()
		st.items[id] = it
		return nil
	})
}

func (i items) GetPage(_ context.Context, num, size int) (page []model.Item, total int, err error) {
	err = i.run(func(st *state) error {
		all := make([]model.Item, 0, len(st.items))
		for _, it := range st.items {
			all = append(all, it)
		}
		sort.Slice(all, func(a, b int) bool { return all[a].ID < all[b].ID })

		total = len(all)
		from := min((num-1)*size, total)
		to := min(from+size, total)
		page = all[from:to]
		return nil
	})
	return
}

type bookings struct{ view }

func (b bookings) Get(_ context.Context, id uuid.UUID) (e model.BookingEntry, err error) {
	err = b.run(func(st *state) error {
		var ok bool
		if e, ok = st.bookings[id]; !ok {
			return model.ErrNotFound
		}
		return nil
	})
	return
}

func (b bookings) ActiveOverlapping(_ context.Context, itemID int64, r model.DateRange) ([]model.BookingEntry, error) {
	return b.filter(func(e model.BookingEntry) bool {
		return e.ItemID == itemID && e.Status.IsActive() && e.Range.Overlaps(r)
	})
}

func (b bookings) Insert(_ context.Context, entries ...model.BookingEntry) error {
	return b.run(func(st *state) error {
		for _, e := range entries {
			if _, ok := st.items[e.ItemID]; !ok {
				return model.ErrNotFound
			}
			st.bookings[e.ID] = e
		}
		return nil
	})
}

func (b bookings) SetStatus(_ context.Context, id uuid.UUID, status model.Status) error {
	return b.run(func(st *state) error {
		e, ok := st.bookings[id]
		if !ok {
			return model.ErrNotFound
		}

		e.Status = status
		e.UpdatedAt = time.Now()
		st.bookings[id] = e
		return nil
	})
}

func (b bookings) ListByOwner(_ context.Context, ownerID string) ([]model.BookingEntry, error) {
	return b.filter(func(e model.BookingEntry) bool { return e.OwnerID == ownerID })
}

func (b bookings) ListBySeller(_ context.Context, sellerID string) (res []model.BookingEntry, err error) {
	err = b.run(func(st *state) error {
		for _, e := range st.bookings {
			if st.items[e.ItemID].SellerID == sellerID {
				res = append(res, e)
			}
		}
		sortBookings(res)
		return nil
	})
	return
}

func (b bookings) ListByOrder(_ context.Context, orderID uuid.UUID) ([]model.BookingEntry, error) {
	return b.filter(func(e model.BookingEntry) bool { return e.OrderID.Valid && e.OrderID.UUID == orderID })
}

func (b bookings) ListAll(_ context.Context) ([]model.BookingEntry, error) {
	return b.filter(func(model.BookingEntry) bool { return true })
}

func (b bookings) filter(keep func(model.BookingEntry) bool) (res []model.BookingEntry, err error) {
	err = b.run(func(st *state) error {
		for _, e := range st.bookings {
			if keep(e) {
				res = append(res, e)
			}
		}
		sortBookings(res)
		return nil
	})
	return
}

// sortBookings orders newest first, ties broken by id for a stable listing.
func sortBookings(bs []model.BookingEntry) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.After(bs[j].CreatedAt)
		}
		return bs[i].ID.String() < bs[j].ID.String()
	})
}

type orders struct{ view }

func (o orders) Insert(_ context.Context, ord *model.Order) error {
	return o.run(func(st *state) error {
		cp := *ord
		cp.Lines = append([]model.OrderLine(nil), ord.Lines...)
		st.orders[ord.ID] = cp
		return nil
	})
}

func (o orders) Get(_ context.Context, id uuid.UUID) (ord model.Order, err error) {
	err = o.run(func(st *state) error {
		var ok bool
		if ord, ok = st.orders[id]; !ok {
			return model.ErrNotFound
		}
		ord.Lines = append([]model.OrderLine(nil), ord.Lines...)
		return nil
	})
	return
}

func (o orders) SetStatus(_ context.Context, id uuid.UUID, status model.Status) error {
	return o.run(func(st *state) error {
		ord, ok := st.orders[id]
		if !ok {
			return model.ErrNotFound
		}

		ord.Status = status
		ord.UpdatedAt = time.Now()
		st.orders[id] = ord
		return nil
	})
}

func (o orders) ListByBuyer(_ context.Context, buyerID string) (res []model.Order, err error) {
	err = o.run(func(st *state) error {
		for _, ord := range st.orders {
			if ord.BuyerID == buyerID {
				ord.Lines = append([]model.OrderLine(nil), ord.Lines...)
				res = append(res, ord)
			}
		}
		sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
		return nil
	})
	return
}

type carts struct{ view }

func (c carts) Get(_ context.Context, ownerID string) (cart model.Cart, err error) {
	err = c.run(func(st *state) error {
		var ok bool
		if cart, ok = st.carts[ownerID]; !ok {
			return model.ErrNotFound
		}
		cart.Lines = append([]model.CartLine(nil), cart.Lines...)
		return nil
	})
	return
}

func (c carts) GetForUpdate(ctx context.Context, ownerID string) (model.Cart, error) {
	return c.Get(ctx, ownerID)
}

func (c carts) Save(_ context.Context, cart *model.Cart) error {
	return c.run(func(st *state) error {
		now := time.Now()
		if cart.CreatedAt.IsZero() {
			cart.CreatedAt = now
		}
		cart.UpdatedAt = now

		cp := *cart
		cp.Lines = append([]model.CartLine{}, cart.Lines...)
		st.carts[cart.OwnerID] = cp
		return nil
	})
}

// Usage reports the per-day usage of an item straight from the live state.
// It is meant for tests asserting the no-overbooking invariant.
func (s *Store) Usage(itemID int64, r model.DateRange) []availability.DayUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []model.BookingEntry
	for _, e := range s.st.bookings {
		if e.ItemID == itemID {
			entries = append(entries, e)
		}
	}

	return availability.DailyUsage(r, entries)
}
