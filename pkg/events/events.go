// Package events publishes booking and order changes for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

const (
	TypeBookingRequested     = "booking.requested"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeOrderPlaced          = "order.placed"
	TypeOrderStatusChanged   = "order.status_changed"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

func BookingRequested(b model.BookingEntry) Event {
	return Event{Type: TypeBookingRequested, Key: itemKey(b.ItemID), OccurredAt: time.Now(), Payload: b}
}

type statusChange struct {
	ID     string       `json:"id"`
	ItemID int64        `json:"item_id,omitempty"`
	Status model.Status `json:"status"`
}

// BookingStatusChanged is built from the entry as it is after the change.
func BookingStatusChanged(b model.BookingEntry) Event {
	return Event{
		Type:       TypeBookingStatusChanged,
		Key:        itemKey(b.ItemID),
		OccurredAt: time.Now(),
		Payload:    statusChange{ID: b.ID.String(), ItemID: b.ItemID, Status: b.Status},
	}
}

func OrderPlaced(o model.Order) Event {
	return Event{Type: TypeOrderPlaced, Key: o.ID.String(), OccurredAt: time.Now(), Payload: o}
}

func OrderStatusChanged(o model.Order) Event {
	return Event{
		Type:       TypeOrderStatusChanged,
		Key:        o.ID.String(),
		OccurredAt: time.Now(),
		Payload:    statusChange{ID: o.ID.String(), Status: o.Status},
	}
}

func itemKey(id int64) string {
	return fmt.Sprintf("item-%d", id)
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}
