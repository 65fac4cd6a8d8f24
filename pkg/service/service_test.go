package service

import (
	"context"
	"testing"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/database/memory"
	"github.com/IlyushaZ/rental-store/pkg/locker"
	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = model.Caller{ID: "buyer-1", Role: model.RoleCustomer}
	buyer2 = model.Caller{ID: "buyer-2", Role: model.RoleCustomer}
	seller = model.Caller{ID: "seller-1", Role: model.RoleSeller}
	other  = model.Caller{ID: "seller-2", Role: model.RoleSeller}
	admin  = model.Caller{ID: "admin-1", Role: model.RoleAdmin}
)

type env struct {
	store   *memory.Store
	booking *BookingGeneric
	order   *OrderGeneric
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.New()
	km := locker.NewKeyedMutex()

	return &env{
		store: store,
		booking: &BookingGeneric{
			Store:      store,
			Locker:     km,
			Attempts:   store,
			Retries:    3,
			RetryDelay: time.Millisecond,
		},
		order: &OrderGeneric{
			Store:      store,
			Locker:     km,
			Retries:    3,
			RetryDelay: time.Millisecond,
			now:        func() time.Time { return day("2024-05-01") },
		},
	}
}

func (e *env) item(t *testing.T, kind model.ItemKind, stock int) model.Item {
	t.Helper()

	it := model.Item{
		SellerID:    seller.ID,
		Title:       "tent",
		Kind:        kind,
		Price:       decimal.NewFromInt(100),
		PricePerDay: decimal.NewFromInt(10),
		Deposit:     decimal.NewFromInt(50),
		TotalStock:  stock,
	}
	require.NoError(t, e.store.Items().Create(context.Background(), &it))
	return it
}

func day(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func rng(t *testing.T, start, end string) model.DateRange {
	t.Helper()

	r, err := model.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}
