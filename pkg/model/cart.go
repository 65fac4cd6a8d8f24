package model

import (
	"github.com/google/uuid"
)

type CartLine struct {
	ID       uuid.UUID  `json:"id"`
	ItemID   int64      `json:"item_id"`
	Type     LineType   `json:"type"`
	Quantity int        `json:"quantity"`
	Range    *DateRange `json:"range,omitempty"`
}

func (l *CartLine) Validate() error {
	if l.Quantity < 1 {
		return Validationf("quantity must be positive, got %d", l.Quantity)
	}

	switch l.Type {
	case LinePurchase:
		if l.Range != nil {
			return Validationf("purchase line can't have a date range")
		}
	case LineRental:
		if l.Range == nil {
			return Validationf("rental line requires a date range")
		}
		if err := l.Range.Validate(); err != nil {
			return err
		}
	default:
		return Validationf("unknown line type %q", l.Type)
	}

	return nil
}

func (l *CartLine) sameSlot(o CartLine) bool {
	if l.ItemID != o.ItemID || l.Type != o.Type {
		return false
	}
	if l.Range == nil || o.Range == nil {
		return l.Range == nil && o.Range == nil
	}
	return l.Range.Start.Equal(o.Range.Start) && l.Range.End.Equal(o.Range.End)
}

// Cart is a per-owner scratch list of prospective lines. Holding a line in the
// cart does not reserve any capacity.
type Cart struct {
	Base
	OwnerID string     `json:"owner_id"`
	Lines   []CartLine `json:"lines"`
}

// Add merges the line into an existing one for the same item, type and range,
// or appends it.
func (c *Cart) Add(line CartLine) {
	for i := range c.Lines {
		if c.Lines[i].sameSlot(line) {
			c.Lines[i].Quantity += line.Quantity
			return
		}
	}

	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	c.Lines = append(c.Lines, line)
}

// RemoveItem drops every line for itemID and returns how many were removed.
func (c *Cart) RemoveItem(itemID int64) int {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ItemID != itemID {
			kept = append(kept, l)
		}
	}

	removed := len(c.Lines) - len(kept)
	c.Lines = kept
	return removed
}

func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// ItemIDs returns the distinct item ids referenced by the cart.
func (c *Cart) ItemIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Lines))
	ids := make([]int64, 0, len(c.Lines))
	for _, l := range c.Lines {
		if _, ok := seen[l.ItemID]; ok {
			continue
		}
		seen[l.ItemID] = struct{}{}
		ids = append(ids, l.ItemID)
	}
	return ids
}
