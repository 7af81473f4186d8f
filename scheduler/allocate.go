package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/events"
	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/reserveerr"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DateRange is one caller-supplied (start, end) pair, possibly naive (local
// to the scheduler's timezone) per spec §4.3.
type DateRange struct {
	Start time.Time
	End   time.Time
	Naive bool
}

// AllocateOptions configures Allocate (spec §4.3's keyword arguments).
//
// AutoApprove inverts the spec's approve_manually flag so the Go zero value
// matches the spec's default (approve_manually=True, i.e. AutoApprove
// defaults to false): callers who want reservations to skip manual review
// set AutoApprove to true explicitly.
type AllocateOptions struct {
	Quota           int
	QuotaLimit      int
	PartlyAvailable bool
	AutoApprove     bool
	Grouped         bool
	Raster          int
	Data            datatypes.JSON
	WholeDay        bool
}

func (o AllocateOptions) withDefaults() AllocateOptions {
	if o.Quota <= 0 {
		o.Quota = 1
	}
	if o.Raster <= 0 {
		o.Raster = calendar.DefaultRaster
	}
	return o
}

// Allocate creates one or more master allocations (and their quota mirrors)
// from dates, inside one serializable transaction (spec §4.3).
func (s *Scheduler) Allocate(ctx context.Context, dates []DateRange, opts AllocateOptions) ([]model.Allocation, error) {
	opts = opts.withDefaults()
	windows, err := s.expandWindows(dates, opts.WholeDay)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, reserveerr.ErrInvalidAllocation
	}

	var created []model.Allocation
	err = s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		if err := rejectOverlaps(tx, s.resource, windows); err != nil {
			return err
		}

		var groupKey *string
		if opts.Grouped || len(windows) > 1 {
			key := uuid.New().String()
			groupKey = &key
		}

		for _, w := range windows {
			master := model.Allocation{
				Resource:         s.resource,
				Group:            groupKey,
				Timezone:         s.tz.String(),
				Start:            w.Start,
				End:              w.End,
				Quota:            opts.Quota,
				QuotaLimit:       opts.QuotaLimit,
				PartlyAvailable:  opts.PartlyAvailable,
				ApproveManually:  !opts.AutoApprove,
				Raster:           opts.Raster,
				Data:             opts.Data,
			}
			if err := tx.Create(&master).Error; err != nil {
				return fmt.Errorf("scheduler: creating master allocation: %w", err)
			}
			created = append(created, master)

			for i := 1; i < opts.Quota; i++ {
				mirror := master
				mirror.ID = uuid.Nil
				mirror.MirrorOf = master.ID
				if err := tx.Create(&mirror).Error; err != nil {
					return fmt.Errorf("scheduler: creating mirror allocation: %w", err)
				}
				created = append(created, mirror)
			}
		}

		return s.hooks.Emit(ctx, events.AllocationsAdded, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// expandWindows normalizes dates to UTC calendar.Range values, expanding
// each into per-day windows when wholeDay is set (spec §4.3: "whole_day=True
// expands each pair across local days... honoring DST").
func (s *Scheduler) expandWindows(dates []DateRange, wholeDay bool) ([]calendar.Range, error) {
	var windows []calendar.Range
	for _, d := range dates {
		if wholeDay {
			windows = append(windows, calendar.ExpandDailyDates(d.Start, d.End, s.tz)...)
			continue
		}
		start := calendar.ToUTC(d.Start, s.tz, d.Naive)
		end := calendar.ToUTC(d.End, s.tz, d.Naive)
		if !start.Before(end) {
			return nil, reserveerr.ErrInvalidAllocation
		}
		windows = append(windows, calendar.Range{Start: start, End: end})
	}
	return windows, nil
}

// rejectOverlaps performs spec §4.3's single bounded batch-overlap query:
// compute the envelope of the incoming windows, fetch every master in that
// envelope once, then check in-memory — both against existing rows and
// against the other windows in the same batch.
func rejectOverlaps(tx *gorm.DB, resource string, windows []calendar.Range) error {
	if len(windows) == 0 {
		return nil
	}
	envelopeStart, envelopeEnd := windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start.Before(envelopeStart) {
			envelopeStart = w.Start
		}
		if w.End.After(envelopeEnd) {
			envelopeEnd = w.End
		}
	}

	var existing []model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id", resource).
		Where("start < ? AND \"end\" > ?", envelopeEnd, envelopeStart).
		Find(&existing).Error
	if err != nil {
		return err
	}

	for i, w := range windows {
		for _, e := range existing {
			if calendar.Overlaps(w.Start, w.End, e.Start, e.End) {
				return &reserveerr.OverlapError{Start: w.Start, End: w.End}
			}
		}
		for j, other := range windows {
			if i == j {
				continue
			}
			if calendar.Overlaps(w.Start, w.End, other.Start, other.End) {
				return &reserveerr.OverlapError{Start: w.Start, End: w.End}
			}
		}
	}
	return nil
}
