package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservationAttempt is an audit record of a single rental request, kept
// whether it was accepted or rejected.
type ReservationAttempt struct {
	ItemID    int64
	OwnerID   string
	Range     DateRange
	Quantity  int
	BookingID uuid.NullUUID
	Error     string
	CreatedAt time.Time
}
