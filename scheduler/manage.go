package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/query"
	"github.com/cohub/reservations/reserveerr"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChangeAttrs names the non-temporal Allocation attributes ChangeAllocation
// may update. A nil field leaves that attribute unchanged.
type ChangeAttrs struct {
	Quota           *int
	QuotaLimit      *int
	PartlyAvailable *bool
	ApproveManually *bool
	Raster          *int
	Data            datatypes.JSON
}

// ChangeAllocation modifies non-temporal attributes of the allocation
// identified by id (spec §4.4). Shrinking Quota below the number of mirror
// family members that currently carry a reserved slot is rejected.
func (s *Scheduler) ChangeAllocation(ctx context.Context, id uuid.UUID, attrs ChangeAttrs) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		var master model.Allocation
		if err := tx.Where("id = ? AND resource = ?", id, s.resource).First(&master).Error; err != nil {
			return fmt.Errorf("scheduler: loading allocation %s: %w", id, err)
		}

		if attrs.Quota != nil {
			_, used, _, err := query.FreeAllocationsCount(tx, master)
			if err != nil {
				return err
			}
			if *attrs.Quota < used {
				return reserveerr.ErrQuotaImpossible
			}
			if err := resizeFamily(tx, master, *attrs.Quota); err != nil {
				return err
			}
		}

		updates := map[string]any{}
		if attrs.QuotaLimit != nil {
			updates["quota_limit"] = *attrs.QuotaLimit
		}
		if attrs.PartlyAvailable != nil {
			updates["partly_available"] = *attrs.PartlyAvailable
		}
		if attrs.ApproveManually != nil {
			updates["approve_manually"] = *attrs.ApproveManually
		}
		if attrs.Raster != nil {
			updates["raster"] = *attrs.Raster
		}
		if attrs.Data != nil {
			updates["data"] = attrs.Data
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&model.Allocation{}).Where("mirror_of = ?", master.MirrorOf).Updates(updates).Error
	})
}

// resizeFamily grows or shrinks a mirror family to newQuota members,
// creating or deleting mirror rows as needed. The caller has already
// confirmed newQuota is not below the family's in-use count.
func resizeFamily(tx *gorm.DB, master model.Allocation, newQuota int) error {
	members, err := familyOrdered(tx, master)
	if err != nil {
		return err
	}

	switch {
	case newQuota > len(members):
		for i := len(members); i < newQuota; i++ {
			mirror := master
			mirror.ID = uuid.Nil
			mirror.MirrorOf = master.MirrorOf
			if err := tx.Create(&mirror).Error; err != nil {
				return fmt.Errorf("scheduler: growing mirror family: %w", err)
			}
		}
	case newQuota < len(members):
		toDelete := len(members) - newQuota
		free, err := freeFamilyMembers(tx, members)
		if err != nil {
			return err
		}
		deleted := 0
		for _, m := range free {
			if deleted == toDelete {
				break
			}
			if m.ID == master.MirrorOf {
				continue // never delete the master row itself
			}
			if err := tx.Delete(&m).Error; err != nil {
				return fmt.Errorf("scheduler: shrinking mirror family: %w", err)
			}
			deleted++
		}
		if deleted < toDelete {
			// Fewer non-master members are free than need deleting. The
			// caller's used-count check does not rule this out: the master
			// row is never deleted, so when it is one of the free members
			// the shrink can still fall short.
			return reserveerr.ErrQuotaImpossible
		}
	}
	return tx.Model(&model.Allocation{}).Where("mirror_of = ?", master.MirrorOf).
		Update("quota", newQuota).Error
}

func familyOrdered(tx *gorm.DB, master model.Allocation) ([]model.Allocation, error) {
	var members []model.Allocation
	err := tx.Where("mirror_of = ?", master.MirrorOf).Order("id").Find(&members).Error
	return members, err
}

// freeFamilyMembers returns the subset of members backing no ReservedSlot at
// all, in the same order as members. Usage doesn't necessarily correlate
// with id order — a lower-id mirror can be freed by RemoveReservation while a
// higher-id one stays occupied — so shrinking a family must pick deletion
// candidates by actual occupancy, the same technique chooseFreeMirrors uses
// in approve.go, rather than trimming the id-sorted tail.
func freeFamilyMembers(tx *gorm.DB, members []model.Allocation) ([]model.Allocation, error) {
	var free []model.Allocation
	for _, m := range members {
		var count int64
		if err := tx.Model(&model.ReservedSlot{}).Where("allocation_id = ?", m.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			free = append(free, m)
		}
	}
	return free, nil
}

// MoveAllocation relocates a master (and its mirrors) to [newStart,newEnd),
// optionally resizing its quota (spec §4.4). It rejects the move if the new
// window overlaps another master on the resource, if any reserved slot
// would fall outside the new window, or if newQuota is below the number of
// family members currently carrying a reserved slot.
func (s *Scheduler) MoveAllocation(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time, newQuota *int) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		var master model.Allocation
		if err := tx.Where("id = ? AND resource = ?", id, s.resource).First(&master).Error; err != nil {
			return fmt.Errorf("scheduler: loading allocation %s: %w", id, err)
		}
		if !newStart.Before(newEnd) {
			return reserveerr.ErrInvalidAllocation
		}

		var others []model.Allocation
		if err := tx.Where("resource = ? AND mirror_of = id AND id <> ?", s.resource, master.MirrorOf).
			Where("start < ? AND \"end\" > ?", newEnd, newStart).
			Find(&others).Error; err != nil {
			return err
		}
		if len(others) > 0 {
			return &reserveerr.OverlapError{Start: newStart, End: newEnd}
		}

		members, err := familyOrdered(tx, master)
		if err != nil {
			return err
		}

		var slots []model.ReservedSlot
		ids := make([]uuid.UUID, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		if err := tx.Where("allocation_id IN ?", ids).Find(&slots).Error; err != nil {
			return err
		}
		for _, slot := range slots {
			if !calendar.Contains(newStart, newEnd, slot.Start, slot.End) {
				return reserveerr.ErrAffectedReservation
			}
			if master.PartlyAvailable && !calendar.IsRasterAligned(slot.Start, newStart, master.RasterDuration()) {
				return reserveerr.ErrAffectedReservation
			}
		}

		if newQuota != nil {
			_, used, _, err := query.FreeAllocationsCount(tx, master)
			if err != nil {
				return err
			}
			if *newQuota < used {
				return reserveerr.ErrQuotaImpossible
			}
			if err := resizeFamily(tx, master, *newQuota); err != nil {
				return err
			}
		}

		return tx.Model(&model.Allocation{}).Where("mirror_of = ?", master.MirrorOf).
			Updates(map[string]any{"start": newStart, "end": newEnd}).Error
	})
}

// RemoveAllocation deletes a mirror family, identified either by its master
// id or by a group key (spec §4.4). It refuses to delete a family with any
// reserved slot (ErrAffectedReservation) or any pending reservation
// referencing it (ErrAffectedPendingReservation).
func (s *Scheduler) RemoveAllocation(ctx context.Context, id *uuid.UUID, group *string) error {
	return s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		masters, err := s.loadMastersByIDOrGroup(tx, id, group)
		if err != nil {
			return err
		}
		for _, master := range masters {
			if err := removeFamily(tx, master); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Scheduler) loadMastersByIDOrGroup(tx *gorm.DB, id *uuid.UUID, group *string) ([]model.Allocation, error) {
	q := tx.Where("resource = ? AND mirror_of = id", s.resource)
	switch {
	case id != nil:
		q = q.Where("id = ?", *id)
	case group != nil:
		q = q.Where("\"group\" = ?", *group)
	default:
		return nil, reserveerr.ErrInvalidAllocation
	}
	var masters []model.Allocation
	err := q.Find(&masters).Error
	return masters, err
}

func removeFamily(tx *gorm.DB, master model.Allocation) error {
	members, err := familyOrdered(tx, master)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	var slotCount int64
	if err := tx.Model(&model.ReservedSlot{}).Where("allocation_id IN ?", ids).Count(&slotCount).Error; err != nil {
		return err
	}
	if slotCount > 0 {
		return reserveerr.ErrAffectedReservation
	}

	var pendingCount int64
	masterID := master.MirrorOf.String()
	err = tx.Model(&model.Reservation{}).
		Where("target = ? AND target_type = ? AND status = ?", masterID, model.TargetAllocation, model.StatusPending).
		Count(&pendingCount).Error
	if err != nil {
		return err
	}
	if pendingCount > 0 {
		return reserveerr.ErrAffectedPendingReservation
	}

	return tx.Where("mirror_of = ?", master.MirrorOf).Delete(&model.Allocation{}).Error
}

// RemoveUnusedAllocations deletes master allocations (and their mirrors)
// fully contained in [start,end] with no reserved slot anywhere in the
// family, optionally filtered by weekday and group (spec §4.4, §9 open
// question (a) — both filter modes are preserved via the group/excludeGroups
// combination: group restricts to one group, excludeGroups restricts to
// ungrouped allocations; passing both matches no allocation).
// It returns the number of families removed.
func (s *Scheduler) RemoveUnusedAllocations(ctx context.Context, start, end time.Time, group *string, weekdays []time.Weekday, excludeGroups bool) (int, error) {
	removed := 0
	err := s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		var candidates []model.Allocation
		err := tx.Where("resource = ? AND mirror_of = id", s.resource).
			Where("start >= ? AND \"end\" <= ?", start, end).
			Order("id").
			Find(&candidates).Error
		if err != nil {
			return err
		}

		for _, master := range candidates {
			if excludeGroups && master.Group != nil {
				continue
			}
			if group != nil && (master.Group == nil || *master.Group != *group) {
				continue
			}
			if len(weekdays) > 0 && !weekdayAllowed(master, weekdays) {
				continue
			}

			members, err := familyOrdered(tx, master)
			if err != nil {
				return err
			}
			ids := make([]uuid.UUID, len(members))
			for i, m := range members {
				ids[i] = m.ID
			}
			var slotCount int64
			if err := tx.Model(&model.ReservedSlot{}).Where("allocation_id IN ?", ids).Count(&slotCount).Error; err != nil {
				return err
			}
			if slotCount > 0 {
				continue // spec §4.4: a slot without a referencing reservation is still treated as reserved, the safe side
			}

			if err := tx.Where("mirror_of = ?", master.MirrorOf).Delete(&model.Allocation{}).Error; err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func weekdayAllowed(master model.Allocation, weekdays []time.Weekday) bool {
	local := calendar.WeekdayIn(master.Start, master.Location())
	for _, w := range weekdays {
		if local == w {
			return true
		}
	}
	return false
}
