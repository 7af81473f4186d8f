// Package query implements the engine's read-only aggregate and search
// operations (spec §4.7, "Queries / IndependentQueries") — availability
// reporting, allocation search, reservation lookups, and free-capacity
// accounting. Every function here takes an explicit *gorm.DB so callers
// (in practice, scheduler) can run it against either the write session's
// transaction or the dedicated read-only session, the same tx-threaded
// shape the igor2 reference file in the example pack uses for its own
// read helpers.
package query

import (
	"time"

	"github.com/cohub/reservations/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// family loads every allocation sharing master's mirror family — the
// master plus its mirrors — ordered by id, which is also the order the
// scheduler uses to pick the next free mirror on approval (spec §4.6).
func family(tx *gorm.DB, master model.Allocation) ([]model.Allocation, error) {
	var members []model.Allocation
	if err := tx.Where("mirror_of = ?", master.MirrorOf).Order("id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// familyIDs returns the ids of the given family members.
func familyIDs(members []model.Allocation) []uuid.UUID {
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

// overlapSeconds returns the number of seconds [aStart,aEnd) and
// [bStart,bEnd) have in common, or 0 if they don't overlap.
func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}

// usedSecondsInWindow sums, across the family's reserved slots, the
// portion of each slot's span that falls inside [start,end).
func usedSecondsInWindow(tx *gorm.DB, ids []uuid.UUID, start, end time.Time) (float64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var slots []model.ReservedSlot
	if err := tx.Where("allocation_id IN ?", ids).
		Where("start < ? AND \"end\" > ?", end, start).
		Find(&slots).Error; err != nil {
		return 0, err
	}
	var used float64
	for _, s := range slots {
		used += overlapSeconds(s.Start, s.End, start, end)
	}
	return used, nil
}
