package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusOngoing   Status = "ongoing"
	StatusReturned  Status = "returned"
	StatusRejected  Status = "rejected"
)

// transitions lists the statuses reachable from each status.
// returned and rejected are terminal.
var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusOngoing, StatusRejected},
	StatusOngoing:   {StatusReturned},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", Validationf("unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusOngoing, StatusReturned, StatusRejected:
		return true
	}
	return false
}

// IsActive reports whether an entry in this status consumes capacity.
func (s Status) IsActive() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusOngoing:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func ActiveStatuses() []Status {
	return []Status{StatusRequested, StatusApproved, StatusOngoing}
}

// Transition validates moving from cur to next.
func Transition(cur, next Status) error {
	if !next.Valid() {
		return Validationf("unknown status %q", next)
	}
	if !cur.CanTransitionTo(next) {
		return Validationf("can't move from %s to %s", cur, next)
	}
	return nil
}

type Origin string

const (
	OriginStandalone Origin = "standalone-rental"
	OriginOrderLine  Origin = "order-line"
)

// BookingEntry is a unit of demand against an item's stock for a date range.
// Standalone rental requests and rental lines of orders share this shape.
type BookingEntry struct {
	Base
	ID          uuid.UUID       `json:"id"`
	ItemID      int64           `json:"item_id"`
	OrderID     uuid.NullUUID   `json:"order_id"`
	OwnerID     string          `json:"owner_id"`
	Range       DateRange       `json:"range"`
	Quantity    int             `json:"quantity"`
	Status      Status          `json:"status"`
	Origin      Origin          `json:"origin"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Deposit     decimal.Decimal `json:"deposit"`
}

// Consumes reports whether the entry counts against the item's capacity.
// Entries with non-positive quantity are treated as stale.
func (b *BookingEntry) Consumes() bool {
	return b.Status.IsActive() && b.Quantity > 0
}

// RentalAmount is quantity × price per day × inclusive day count.
func RentalAmount(qty int, pricePerDay decimal.Decimal, r DateRange) decimal.Decimal {
	return pricePerDay.Mul(decimal.NewFromInt(int64(qty))).Mul(decimal.NewFromInt(int64(r.Days())))
}
