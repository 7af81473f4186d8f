package query

import (
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationAvailability reports the free-capacity percentage of one
// mirror family over a window (spec §4.7: "availability(start, end,
// timezone): returns per-allocation ... percentage of capacity free").
type AllocationAvailability struct {
	MasterID    uuid.UUID
	Resource    string
	Start       time.Time
	End         time.Time
	FreePercent float64
}

// Availability reports free-capacity percentage for every master
// allocation on resource overlapping [start,end). normalizeDST selects
// calendar.NormalizedAvailability's 23h/25h scaling (spec §4.1,
// testable property 6).
func Availability(tx *gorm.DB, resource string, start, end time.Time, normalizeDST bool) ([]AllocationAvailability, error) {
	var masters []model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id", resource).
		Where("start < ? AND \"end\" > ?", end, start).
		Order("start").
		Find(&masters).Error
	if err != nil {
		return nil, err
	}

	out := make([]AllocationAvailability, 0, len(masters))
	for _, master := range masters {
		members, err := family(tx, master)
		if err != nil {
			return nil, err
		}

		windowStart, windowEnd := master.Start, master.End
		if start.After(windowStart) {
			windowStart = start
		}
		if end.Before(windowEnd) {
			windowEnd = end
		}

		window := windowEnd.Sub(windowStart).Seconds()
		total := float64(len(members)) * window
		used, err := usedSecondsInWindow(tx, familyIDs(members), windowStart, windowEnd)
		if err != nil {
			return nil, err
		}

		// Normalize the per-member average against one window's length, so
		// a family of any quota on a 23h/25h day gets the DST scaling.
		pct := 0.0
		if len(members) > 0 {
			pct = calendar.NormalizedAvailability((total-used)/float64(len(members)), window, normalizeDST)
		}
		out = append(out, AllocationAvailability{
			MasterID:    master.ID,
			Resource:    master.Resource,
			Start:       master.Start,
			End:         master.End,
			FreePercent: pct,
		})
	}
	return out, nil
}

// CapacitySnapshot reports {Quota, Used, Free} for one mirror family,
// grounded on sapcc-limes's quota/usage accounting style (report the pair,
// not usage alone) — an enrichment beyond spec §4.7's FreeAllocationsCount.
type CapacitySnapshot struct {
	MasterID uuid.UUID
	Quota    int
	Used     int
	Free     int
}

// CapacitySnapshots reports a CapacitySnapshot per master allocation on
// resource overlapping [start,end).
func CapacitySnapshots(tx *gorm.DB, resource string, start, end time.Time) ([]CapacitySnapshot, error) {
	var masters []model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id", resource).
		Where("start < ? AND \"end\" > ?", end, start).
		Order("start").
		Find(&masters).Error
	if err != nil {
		return nil, err
	}

	out := make([]CapacitySnapshot, 0, len(masters))
	for _, master := range masters {
		quota, used, free, err := FreeAllocationsCount(tx, master)
		if err != nil {
			return nil, err
		}
		out = append(out, CapacitySnapshot{MasterID: master.ID, Quota: quota, Used: used, Free: free})
	}
	return out, nil
}

// FreeAllocationsCount reports free capacity across master's mirror
// family with one query for the family members and one COUNT query over
// their reserved slots, rather than loading every slot row (spec
// §4.7: "returns free capacity across the mirror family without loading
// slot rows individually").
func FreeAllocationsCount(tx *gorm.DB, master model.Allocation) (quota, used, free int, err error) {
	members, err := family(tx, master)
	if err != nil {
		return 0, 0, 0, err
	}
	quota = len(members)

	var usedCount int64
	err = tx.Model(&model.ReservedSlot{}).
		Where("allocation_id IN ?", familyIDs(members)).
		Where("start < ? AND \"end\" > ?", master.End, master.Start).
		Distinct("allocation_id").
		Count(&usedCount).Error
	if err != nil {
		return 0, 0, 0, err
	}

	used = int(usedCount)
	free = quota - used
	if free < 0 {
		free = 0
	}
	return quota, used, free, nil
}
