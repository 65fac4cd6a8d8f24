package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LineType string

const (
	LinePurchase LineType = "purchase"
	LineRental   LineType = "rental"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type ShippingInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address"`
	City          string `json:"city"`
	ZipCode       string `json:"zip_code"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type OrderLine struct {
	ItemID    int64           `json:"item_id"`
	Type      LineType        `json:"type"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // per unit for purchases, per unit per day for rentals
	Range     *DateRange      `json:"range,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	BookingID uuid.NullUUID   `json:"booking_id"`
}

type Order struct {
	Base
	ID            uuid.UUID       `json:"id"`
	BuyerID       string          `json:"buyer_id"`
	Lines         []OrderLine     `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Status        Status          `json:"status"`
	Shipping      ShippingInfo    `json:"shipping"`
}

// PurchaseAmount is quantity × unit price.
func PurchaseAmount(qty int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
