package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllocation_IsMaster(t *testing.T) {
	a := &Allocation{ID: uuid.New()}
	a.MirrorOf = a.ID
	assert.True(t, a.IsMaster())

	mirror := &Allocation{ID: uuid.New(), MirrorOf: a.ID}
	assert.False(t, mirror.IsMaster())
}

func TestAllocation_CoversAndOverlaps(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	a := &Allocation{Start: start, End: end}

	assert.True(t, a.Covers(start, start.Add(time.Hour)))
	assert.False(t, a.Covers(start.Add(-time.Minute), end))
	assert.True(t, a.Overlaps(start.Add(-time.Hour), start.Add(time.Minute)))
	assert.False(t, a.Overlaps(end, end.Add(time.Hour)))
}

func TestIdentity_Equal(t *testing.T) {
	id1 := Identity{Kind: KindAllocation, ID: "a"}
	id2 := Identity{Kind: KindAllocation, ID: "a"}
	id3 := Identity{Kind: KindReservedSlot, ID: "a"}

	assert.True(t, id1.Equal(id2))
	assert.False(t, id1.Equal(id3))
}

func TestReservation_CartKey(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r1 := &Reservation{Resource: "room-1", Target: "alloc-1", Start: start, End: end, Quota: 1}
	r2 := &Reservation{Resource: "room-1", Target: "alloc-1", Start: start, End: end, Quota: 1}
	r3 := &Reservation{Resource: "room-1", Target: "alloc-1", Start: start, End: end, Quota: 2}

	assert.Equal(t, r1.CartKey(), r2.CartKey())
	assert.NotEqual(t, r1.CartKey(), r3.CartKey())
}

func TestReservedSlot_Overlaps(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s := &ReservedSlot{Start: start, End: start.Add(15 * time.Minute)}

	assert.True(t, s.Overlaps(start, start.Add(time.Minute)))
	assert.False(t, s.Overlaps(s.End, s.End.Add(time.Minute)))
}
