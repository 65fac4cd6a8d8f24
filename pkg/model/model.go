package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation               = errors.New("validation failed")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrNotFound                 = errors.New("record not found")
	ErrConflict                 = errors.New("concurrent update detected, try again")
	ErrPersistence              = errors.New("storage failure")
	ErrForbidden                = errors.New("operation not permitted")
)

type Base struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validationf builds an error that matches ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ShortfallError is returned when a line can't be satisfied by the item's capacity.
// Reason is either ErrInsufficientAvailability (rentals) or ErrInsufficientStock (purchases).
type ShortfallError struct {
	ItemID    int64
	Reason    error
	Requested int
	Available int
	Range     *DateRange
}

func (e *ShortfallError) Error() string {
	if e.Range != nil {
		return fmt.Sprintf("%s for item %d between %s and %s: requested %d, available %d",
			e.Reason, e.ItemID, e.Range.Start.Format(DateLayout), e.Range.End.Format(DateLayout), e.Requested, e.Available)
	}
	return fmt.Sprintf("%s for item %d: requested %d, available %d", e.Reason, e.ItemID, e.Requested, e.Available)
}

func (e *ShortfallError) Unwrap() error {
	return e.Reason
}
