package model

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// MaxRangeDays bounds any range a rental, an availability query or a calendar may span.
const MaxRangeDays = 366

// Day drops the time-of-day component, keeping the calendar date of t.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, Validationf("start and end dates are required")
	}

	r := DateRange{Start: Day(start), End: Day(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}

	return r, nil
}

// Validate checks that the range isn't inverted and spans at most MaxRangeDays.
func (r DateRange) Validate() error {
	if Day(r.End).Before(Day(r.Start)) {
		return Validationf("end date %s is before start date %s", r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	if days := r.Days(); days > MaxRangeDays {
		return Validationf("range %s spans %d days, at most %d allowed", r, days, MaxRangeDays)
	}
	return nil
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, Validationf("can't parse start date %q: %v", start, err)
	}

	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, Validationf("can't parse end date %q: %v", end, err)
	}

	return NewDateRange(s, e)
}

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return int((Day(r.End).Unix()-Day(r.Start).Unix())/secondsPerDay) + 1
}

func (r DateRange) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

// Overlaps reports whether both ranges share at least one calendar day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !Day(o.Start).After(Day(r.End)) && !Day(o.End).Before(Day(r.Start))
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}
