package query

import (
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/model"
	"gorm.io/gorm"
)

// SearchOptions filters SearchAllocations (spec §4.7:
// "search_allocations(start, end, days=None, minspots=0,
// available_only=False, whole_day=None, strict=False, groups=None)").
type SearchOptions struct {
	// Days restricts results to allocations whose local weekday (in the
	// allocation's own timezone, not UTC) is one of these.
	Days []time.Weekday

	// MinSpots requires at least this many free units of capacity in
	// the family (checked via FreeAllocationsCount).
	MinSpots int

	// AvailableOnly requires at least one free unit of capacity.
	AvailableOnly bool

	// WholeDay, when non-nil, restricts to allocations whose
	// PartlyAvailable flag equals !*WholeDay. Whether an allocation was
	// created whole-day is not stored, so PartlyAvailable is the only
	// signal this filter uses.
	WholeDay *bool

	// Strict requires the allocation to lie fully within [start,end]
	// rather than merely overlap it.
	Strict bool

	// Groups restricts results to allocations whose Group is one of
	// these keys. An empty slice means no group filter.
	Groups []string
}

// SearchAllocations filters master allocations on resource by the
// criteria in opts. The weekday filter is applied in Go, not SQL —
// spec §4.7: "days filter aligns its weekday comparison to the
// allocation's timezone (not UTC)", which only calendar.WeekdayIn can do
// correctly across the whole set once each row's own IANA zone is known.
func SearchAllocations(tx *gorm.DB, resource string, start, end time.Time, opts SearchOptions) ([]model.Allocation, error) {
	q := tx.Where("resource = ? AND mirror_of = id", resource)
	if opts.Strict {
		q = q.Where("start >= ? AND \"end\" <= ?", start, end)
	} else {
		q = q.Where("start < ? AND \"end\" > ?", end, start)
	}
	if len(opts.Groups) > 0 {
		q = q.Where("\"group\" IN ?", opts.Groups)
	}
	if opts.WholeDay != nil {
		q = q.Where("partly_available = ?", !*opts.WholeDay)
	}

	var candidates []model.Allocation
	if err := q.Order("start").Find(&candidates).Error; err != nil {
		return nil, err
	}

	out := make([]model.Allocation, 0, len(candidates))
	for _, alloc := range candidates {
		if len(opts.Days) > 0 && !weekdayMatches(alloc, opts.Days) {
			continue
		}
		if opts.MinSpots > 0 || opts.AvailableOnly {
			_, _, free, err := FreeAllocationsCount(tx, alloc)
			if err != nil {
				return nil, err
			}
			if opts.AvailableOnly && free < 1 {
				continue
			}
			if opts.MinSpots > 0 && free < opts.MinSpots {
				continue
			}
		}
		out = append(out, alloc)
	}
	return out, nil
}

func weekdayMatches(alloc model.Allocation, days []time.Weekday) bool {
	local := calendar.WeekdayIn(alloc.Start, alloc.Location())
	for _, d := range days {
		if local == d {
			return true
		}
	}
	return false
}
