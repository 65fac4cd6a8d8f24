// Package availability computes how many units of an item are free to promise
// over a range of days. It has no side effects.
package availability

import (
	"cmp"
	"slices"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
)

type Result struct {
	TotalStock int `json:"total_stock"`
	PeakUsage  int `json:"peak_used"`
	Available  int `json:"available"`
}

type DayUsage struct {
	Date time.Time `json:"date"`
	Used int       `json:"used"`
}

// Calculate finds the day of r with the highest simultaneous demand.
// Entries that are inactive or have a non-positive quantity are ignored.
// Available is never negative and never exceeds totalStock.
func Calculate(totalStock int, r model.DateRange, entries []model.BookingEntry) Result {
	if totalStock < 0 {
		totalStock = 0
	}

	peak := Peak(r, entries)

	available := totalStock - peak
	if available < 0 {
		available = 0
	}

	return Result{
		TotalStock: totalStock,
		PeakUsage:  peak,
		Available:  available,
	}
}

type change struct {
	at  time.Time
	qty int
}

// Peak returns the highest summed quantity of consuming entries on any day of r.
// It sweeps entry boundaries, so its cost depends on the number of entries
// and not on the length of r.
func Peak(r model.DateRange, entries []model.BookingEntry) int {
	from, to := model.Day(r.Start), model.Day(r.End)

	relevant := Overlapping(r, entries)
	changes := make([]change, 0, 2*len(relevant))
	for _, e := range relevant {
		start := model.Day(e.Range.Start)
		if start.Before(from) {
			start = from
		}
		end := model.Day(e.Range.End)
		if end.After(to) {
			end = to
		}

		changes = append(changes,
			change{at: start, qty: e.Quantity},
			change{at: end.AddDate(0, 0, 1), qty: -e.Quantity},
		)
	}

	// releases on a day go before takes on the same day
	slices.SortFunc(changes, func(a, b change) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.qty, b.qty)
	})

	peak, used := 0, 0
	for _, c := range changes {
		used += c.qty
		peak = max(peak, used)
	}

	return peak
}

// DailyUsage returns the summed quantity of consuming entries for each day of r.
func DailyUsage(r model.DateRange, entries []model.BookingEntry) []DayUsage {
	relevant := Overlapping(r, entries)

	usage := make([]DayUsage, 0, r.Days())
	for d := model.Day(r.Start); !d.After(model.Day(r.End)); d = d.AddDate(0, 0, 1) {
		used := 0
		for i := range relevant {
			if relevant[i].Range.Contains(d) {
				used += relevant[i].Quantity
			}
		}

		usage = append(usage, DayUsage{Date: d, Used: used})
	}

	return usage
}

// Overlapping filters entries down to those consuming capacity on at least one day of r.
func Overlapping(r model.DateRange, entries []model.BookingEntry) []model.BookingEntry {
	res := make([]model.BookingEntry, 0, len(entries))
	for _, e := range entries {
		if e.Consumes() && e.Range.Overlaps(r) {
			res = append(res, e)
		}
	}
	return res
}

// Horizon returns the range from `from` up to the latest end date among the
// consuming entries. ok is false if no entry ends on or after from.
func Horizon(from time.Time, entries []model.BookingEntry) (r model.DateRange, ok bool) {
	from = model.Day(from)
	end := from

	for _, e := range entries {
		if !e.Consumes() {
			continue
		}
		if e.Range.End.After(end) || (!ok && e.Range.End.Equal(end)) {
			end = model.Day(e.Range.End)
			ok = true
		}
	}

	return model.DateRange{Start: from, End: end}, ok
}
