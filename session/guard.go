package session

import "sync/atomic"

// Guard tracks whether the write session currently holds an open,
// uncommitted transaction. The read session consults it before running any
// query so a caller can never observe a dirty (uncommitted) write from the
// read-only side (spec §4.2: "reading through the read session while the
// write session holds uncommitted changes raises DirtyReadOnlySession").
type Guard struct {
	open atomic.Int64
}

// NewGuard returns a clean guard.
func NewGuard() *Guard {
	return &Guard{}
}

// MarkDirty records that the write session has opened a transaction that
// hasn't committed yet.
func (g *Guard) MarkDirty() {
	g.open.Add(1)
}

// Clear records that one of the write session's transactions has committed
// or rolled back.
func (g *Guard) Clear() {
	g.open.Add(-1)
}

// IsDirty reports whether the write session currently has uncommitted work
// in any of its open transactions.
func (g *Guard) IsDirty() bool {
	return g.open.Load() > 0
}
