package model

import (
	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	KindPurchase ItemKind = "purchase"
	KindRental   ItemKind = "rental"
	KindBoth     ItemKind = "both"
)

func (k ItemKind) Valid() bool {
	switch k {
	case KindPurchase, KindRental, KindBoth:
		return true
	}
	return false
}

func (k ItemKind) Rentable() bool    { return k == KindRental || k == KindBoth }
func (k ItemKind) Purchasable() bool { return k == KindPurchase || k == KindBoth }

// Item is a catalog entry. TotalStock is the number of physical units;
// purchases decrement it, rentals never do.
type Item struct {
	Base
	ID                int64           `json:"id"`
	SellerID          string          `json:"seller_id"`
	Title             string          `json:"title"`
	Category          string          `json:"category,omitempty"`
	Kind              ItemKind        `json:"kind"`
	Price             decimal.Decimal `json:"price"`
	PricePerDay       decimal.Decimal `json:"price_per_day"`
	Deposit           decimal.Decimal `json:"deposit"`
	TotalStock        int             `json:"total_stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Version           int64           `json:"-"`
}

func (i *Item) LowStock() bool {
	return i.TotalStock <= i.LowStockThreshold
}

func (i *Item) Validate() error {
	switch {
	case i.Title == "":
		return Validationf("item title is required")
	case !i.Kind.Valid():
		return Validationf("unknown item kind %q", i.Kind)
	case i.TotalStock < 0:
		return Validationf("total stock can't be negative")
	case i.LowStockThreshold < 0:
		return Validationf("low stock threshold can't be negative")
	case i.Price.IsNegative() || i.PricePerDay.IsNegative() || i.Deposit.IsNegative():
		return Validationf("prices can't be negative")
	}
	return nil
}
