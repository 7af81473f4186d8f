package model

// Kind discriminates the three entity families the engine persists, used
// for value-based equality instead of the teacher's identity-based
// hashability (spec §9: "re-architect with value-based equality on
// (kind, id)" in place of ORM-plugin hashable entities).
type Kind string

const (
	KindAllocation  Kind = "allocation"
	KindReservedSlot Kind = "reserved_slot"
	KindReservation Kind = "reservation"
)

// Identity is a (kind, id) pair two entities can be compared by value on,
// regardless of which Go struct instance they live in.
type Identity struct {
	Kind Kind
	ID   string
}

// Equal compares two identities by value.
func (i Identity) Equal(other Identity) bool {
	return i.Kind == other.Kind && i.ID == other.ID
}
