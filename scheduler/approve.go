package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/events"
	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/query"
	"github.com/cohub/reservations/reserveerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApproveReservation promotes every pending line sharing token to approved,
// creating the ReservedSlot rows that back it (spec §4.6).
func (s *Scheduler) ApproveReservation(ctx context.Context, token uuid.UUID) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		var lines []model.Reservation
		err := tx.Where("token = ? AND status = ? AND resource = ?", token, model.StatusPending, s.resource).
			Find(&lines).Error
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return reserveerr.ErrNotReservable
		}

		var allSlots []model.ReservedSlot
		for i := range lines {
			line := &lines[i]
			master, err := s.resolveApprovalTarget(tx, line)
			if err != nil {
				return err
			}

			slots, err := claimSlots(tx, *master, *line)
			if err != nil {
				return err
			}
			allSlots = append(allSlots, slots...)

			if err := tx.Model(line).Update("status", model.StatusApproved).Error; err != nil {
				return fmt.Errorf("scheduler: approving reservation %s: %w", line.ID, err)
			}
		}

		if err := s.hooks.Emit(ctx, events.SlotReserved, allSlots); err != nil {
			return err
		}
		return s.hooks.Emit(ctx, events.ReservationApproved, lines)
	})
}

// resolveApprovalTarget resolves a reservation line's Target to a concrete
// master allocation — itself, if TargetType is allocation, or the first
// group member (ordered by id) with free capacity, if TargetType is group
// (spec §4.6: "group targets pick the first allocation with free capacity,
// deterministically by id").
func (s *Scheduler) resolveApprovalTarget(tx *gorm.DB, line *model.Reservation) (*model.Allocation, error) {
	if line.TargetType == model.TargetAllocation {
		id, err := uuid.Parse(line.Target)
		if err != nil {
			return nil, fmt.Errorf("scheduler: parsing allocation target: %w", err)
		}
		var master model.Allocation
		if err := tx.Where("id = ?", id).First(&master).Error; err != nil {
			return nil, fmt.Errorf("scheduler: loading target allocation: %w", err)
		}
		return &master, nil
	}

	var candidates []model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id AND \"group\" = ?", s.resource, line.Target).
		Where("start <= ? AND \"end\" >= ?", line.Start, line.End).
		Order("id").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		_, _, free, err := query.FreeAllocationsCount(tx, candidates[i])
		if err != nil {
			return nil, err
		}
		if free > 0 {
			return &candidates[i], nil
		}
	}
	return nil, reserveerr.WithReservation(reserveerr.ErrQuotaImpossible, line.ID.String(), line.Token.String())
}

// claimSlots inserts the ReservedSlot rows backing line within master's
// mirror family, choosing line.Quota distinct mirrors (lowest id first,
// among those free across the whole [line.Start,line.End) span) and, when
// the allocation is partly available, one slot per raster tick per chosen
// mirror.
func claimSlots(tx *gorm.DB, master model.Allocation, line model.Reservation) ([]model.ReservedSlot, error) {
	members, err := familyOrdered(tx, master)
	if err != nil {
		return nil, err
	}

	var ticks []calendar.Range
	if master.PartlyAvailable {
		ticks = calendar.Ticks(line.Start, line.End, master.RasterDuration())
	} else {
		ticks = []calendar.Range{{Start: line.Start, End: line.End}}
	}

	chosen, err := chooseFreeMirrors(tx, members, line.Start, line.End, line.Quota)
	if err != nil {
		return nil, err
	}

	var slots []model.ReservedSlot
	for _, mirror := range chosen {
		for _, tick := range ticks {
			slot := model.ReservedSlot{
				Resource:         master.Resource,
				AllocationID:     mirror.ID,
				Start:            tick.Start,
				End:              tick.End,
				ReservationToken: line.Token,
			}
			if err := tx.Create(&slot).Error; err != nil {
				return nil, reserveerr.WithReservation(reserveerr.ErrAlreadyReserved, line.ID.String(), line.Token.String())
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

// chooseFreeMirrors selects the first n mirror-family members (lowest id
// first) with no reserved slot overlapping [start,end).
func chooseFreeMirrors(tx *gorm.DB, members []model.Allocation, start, end time.Time, n int) ([]model.Allocation, error) {
	var chosen []model.Allocation
	for _, m := range members {
		var count int64
		err := tx.Model(&model.ReservedSlot{}).
			Where("allocation_id = ?", m.ID).
			Where("start < ? AND \"end\" > ?", end, start).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count == 0 {
			chosen = append(chosen, m)
			if len(chosen) == n {
				return chosen, nil
			}
		}
	}
	return nil, reserveerr.ErrQuotaImpossible
}

// DenyReservation deletes every pending line sharing token, leaving any
// already-approved lines untouched (spec §4.6).
func (s *Scheduler) DenyReservation(ctx context.Context, token uuid.UUID) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		var denied []model.Reservation
		if err := tx.Where("token = ? AND status = ? AND resource = ?", token, model.StatusPending, s.resource).
			Find(&denied).Error; err != nil {
			return err
		}
		if len(denied) == 0 {
			return nil
		}
		if err := tx.Where("token = ? AND status = ? AND resource = ?", token, model.StatusPending, s.resource).
			Delete(&model.Reservation{}).Error; err != nil {
			return err
		}
		return s.hooks.Emit(ctx, events.ReservationDenied, denied)
	})
}

// RemoveReservation deletes reservation line(s) sharing token — all of them,
// or just id if non-nil — cascading to their ReservedSlots (spec §4.6).
func (s *Scheduler) RemoveReservation(ctx context.Context, token uuid.UUID, id *uuid.UUID) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		q := tx.Where("token = ? AND resource = ?", token, s.resource)
		if id != nil {
			q = q.Where("id = ?", *id)
		}

		var removed []model.Reservation
		if err := q.Find(&removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}

		// Scope slot deletion to each removed line's own [Start,End) window,
		// not a bare token match: several lines can share one token (a
		// multi-line Reserve call, or SingleTokenPerSession reuse), and a
		// bare token match would also delete slots backing sibling lines
		// that weren't selected for removal.
		var released []model.ReservedSlot
		for _, line := range removed {
			var lineSlots []model.ReservedSlot
			err := tx.Where("reservation_token = ? AND start >= ? AND \"end\" <= ?", line.Token, line.Start, line.End).
				Find(&lineSlots).Error
			if err != nil {
				return err
			}
			released = append(released, lineSlots...)

			err = tx.Where("reservation_token = ? AND start >= ? AND \"end\" <= ?", line.Token, line.Start, line.End).
				Delete(&model.ReservedSlot{}).Error
			if err != nil {
				return err
			}
		}

		q = tx.Where("token = ? AND resource = ?", token, s.resource)
		if id != nil {
			q = q.Where("id = ?", *id)
		}
		if err := q.Delete(&model.Reservation{}).Error; err != nil {
			return err
		}

		if err := s.hooks.Emit(ctx, events.SlotReleased, released); err != nil {
			return err
		}
		return s.hooks.Emit(ctx, events.ReservationRemoved, removed)
	})
}
