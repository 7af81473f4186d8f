package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is a Reservation's place in its state machine (spec §4.8):
// pending -> approved, or pending/approved -> removed (a deletion, not a
// stored state). denied is likewise a deletion in this engine, but kept as
// a status value here because callers may want an audit trail; the engine
// itself never reads a denied row back as live state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// TargetType says whether a Reservation's Target field names an allocation
// master directly or a group key to be resolved at approval time.
type TargetType string

const (
	TargetAllocation TargetType = "allocation"
	TargetGroup      TargetType = "group"
)

// LineKind distinguishes a normal reservation line from a waitinglist line
// (spec §3's "type: free/waitinglist").
type LineKind string

const (
	LineFree        LineKind = "free"
	LineWaitinglist LineKind = "waitinglist"
)

// Reservation is a caller's claim against one or more allocations —
// pending (held in a session's cart), approved (backed by ReservedSlots),
// or denied/removed (spec §3).
type Reservation struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Token      uuid.UUID      `json:"token" gorm:"type:uuid;not null;index"`
	Target     string         `json:"target" gorm:"not null;index;size:120"`
	TargetType TargetType     `json:"target_type" gorm:"type:varchar(20);not null"`
	Resource   string         `json:"resource" gorm:"not null;index;size:120"`
	Start      time.Time      `json:"start" gorm:"not null"`
	End        time.Time      `json:"end" gorm:"not null"`
	Quota      int            `json:"quota" gorm:"not null;check:quota > 0"`
	Status     Status         `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Email      string         `json:"email" gorm:"size:320"`
	SessionID  *string        `json:"session_id,omitempty" gorm:"index;size:120"`
	Data       datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	Type       LineKind       `json:"type" gorm:"type:varchar(20);not null;default:'free'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName returns the table name for Reservation.
func (Reservation) TableName() string { return "reservations" }

// BeforeCreate fills in a missing ID and, per spec, mints a fresh token
// unless the caller already assigned one (single_token_per_session reuse is
// handled by the scheduler, not here).
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Token == uuid.Nil {
		r.Token = uuid.New()
	}
	if r.Type == "" {
		r.Type = LineFree
	}
	return nil
}

// Identity returns the (kind, id) pair for value-based equality.
func (r *Reservation) Identity() Identity {
	return Identity{Kind: KindReservation, ID: r.ID.String()}
}

// IsPending reports whether the reservation is still in its cart state.
func (r *Reservation) IsPending() bool { return r.Status == StatusPending }

// IsApproved reports whether the reservation has been promoted to
// confirmed capacity.
func (r *Reservation) IsApproved() bool { return r.Status == StatusApproved }

// CartKey is the uniqueness tuple spec §3 enforces within a session's cart:
// (resource, target, start, end, quota).
type CartKey struct {
	Resource string
	Target   string
	Start    time.Time
	End      time.Time
	Quota    int
}

// CartKey computes r's cart uniqueness tuple.
func (r *Reservation) CartKey() CartKey {
	return CartKey{Resource: r.Resource, Target: r.Target, Start: r.Start, End: r.End, Quota: r.Quota}
}
