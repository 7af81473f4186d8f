// Package model holds the reservations engine's three persisted entities —
// Allocation, ReservedSlot, Reservation — as gorm models. Field names and
// gorm tagging style follow the teacher's internal/models package
// (gorm:"type:...;not null;index", a TableName method, a BeforeCreate hook
// that fills in a missing UUID).
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Allocation is a window of time on a resource within which reservations
// may be created (spec §3). Within a mirror family, the master row
// (MirrorOf == ID) carries the family's Quota; quota-1 mirror rows share
// its temporal bounds and per-reservation settings.
type Allocation struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Resource         string         `json:"resource" gorm:"not null;index:idx_alloc_resource_range,priority:1;size:120"`
	MirrorOf         uuid.UUID      `json:"mirror_of" gorm:"type:uuid;not null;index"`
	Group            *string        `json:"group,omitempty" gorm:"index;size:120"`
	Timezone         string         `json:"timezone" gorm:"not null;size:64"`
	Start            time.Time      `json:"start" gorm:"not null;index:idx_alloc_resource_range,priority:2"`
	End              time.Time      `json:"end" gorm:"not null;index:idx_alloc_resource_range,priority:3"`
	Quota            int            `json:"quota" gorm:"not null;check:quota > 0"`
	QuotaLimit       int            `json:"quota_limit" gorm:"not null;default:0"`
	PartlyAvailable  bool           `json:"partly_available" gorm:"not null;default:false"`
	ApproveManually  bool           `json:"approve_manually" gorm:"not null;default:true"`
	WaitinglistSpots *int           `json:"waitinglist_spots,omitempty"`
	Raster           int            `json:"raster" gorm:"not null;default:5"`
	Data             datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName returns the table name for Allocation.
func (Allocation) TableName() string { return "allocations" }

// BeforeCreate fills in a missing ID, and defaults MirrorOf to self for a
// master row when the caller hasn't set it yet.
func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.MirrorOf == uuid.Nil {
		a.MirrorOf = a.ID
	}
	if a.Raster <= 0 {
		a.Raster = 5
	}
	return nil
}

// IsMaster reports whether this allocation is the master of its mirror
// family (MirrorOf == ID).
func (a *Allocation) IsMaster() bool {
	return a.MirrorOf == a.ID
}

// RasterDuration returns the allocation's raster as a time.Duration.
func (a *Allocation) RasterDuration() time.Duration {
	return time.Duration(a.Raster) * time.Minute
}

// Identity returns the (kind, id) pair for value-based equality.
func (a *Allocation) Identity() Identity {
	return Identity{Kind: KindAllocation, ID: a.ID.String()}
}

// Duration returns End.Sub(Start).
func (a *Allocation) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Covers reports whether [start,end) is fully contained within the
// allocation's own window.
func (a *Allocation) Covers(start, end time.Time) bool {
	return !start.Before(a.Start) && !end.After(a.End)
}

// Overlaps reports whether this allocation's window intersects [start,end).
func (a *Allocation) Overlaps(start, end time.Time) bool {
	return a.Start.Before(end) && start.Before(a.End)
}

// Location resolves the allocation's IANA timezone name, defaulting to UTC
// if it is empty or unparsable (the caller is expected to have validated it
// at allocate() time; this is a defensive fallback for older rows).
func (a *Allocation) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
