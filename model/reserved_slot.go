package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservedSlot is a confirmed, atomic unit of consumed capacity inside an
// allocation. Its primary key — (Resource, AllocationID, Start) — is the
// engine's race-prevention primitive: two transactions trying to confirm
// overlapping capacity collide on this key and one of them fails with
// ErrAlreadyReserved (spec §3/§8, testable property 2: slot uniqueness).
type ReservedSlot struct {
	Resource         string    `json:"resource" gorm:"primaryKey;size:120"`
	AllocationID     uuid.UUID `json:"allocation_id" gorm:"type:uuid;primaryKey"`
	Start            time.Time `json:"start" gorm:"primaryKey"`
	End              time.Time `json:"end" gorm:"not null"`
	ReservationToken uuid.UUID `json:"reservation_token" gorm:"type:uuid;not null;index"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the table name for ReservedSlot.
func (ReservedSlot) TableName() string { return "reserved_slots" }

// Identity returns the (kind, id) pair for value-based equality, using the
// composite key joined the way the PK is physically stored.
func (s *ReservedSlot) Identity() Identity {
	return Identity{Kind: KindReservedSlot, ID: s.Resource + "/" + s.AllocationID.String() + "/" + s.Start.UTC().Format(time.RFC3339Nano)}
}

// Duration returns End.Sub(Start).
func (s *ReservedSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether this slot intersects [start,end).
func (s *ReservedSlot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}
