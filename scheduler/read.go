package scheduler

import (
	"context"
	"time"

	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/query"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Availability reports free-capacity percentage for every master allocation
// on this resource overlapping [start,end) (spec §4.7), read through the
// dedicated read-only session.
func (s *Scheduler) Availability(ctx context.Context, start, end time.Time, normalizeDST bool) ([]query.AllocationAvailability, error) {
	var out []query.AllocationAvailability
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.Availability(tx, s.resource, start, end, normalizeDST)
		return err
	})
	return out, err
}

// CapacitySnapshots reports {Quota, Used, Free} per mirror family
// overlapping [start,end).
func (s *Scheduler) CapacitySnapshots(ctx context.Context, start, end time.Time) ([]query.CapacitySnapshot, error) {
	var out []query.CapacitySnapshot
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.CapacitySnapshots(tx, s.resource, start, end)
		return err
	})
	return out, err
}

// SearchAllocations filters this resource's master allocations by opts
// (spec §4.7).
func (s *Scheduler) SearchAllocations(ctx context.Context, start, end time.Time, opts query.SearchOptions) ([]model.Allocation, error) {
	var out []model.Allocation
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.SearchAllocations(tx, s.resource, start, end, opts)
		return err
	})
	return out, err
}

// ReservationsBySession returns sessionID's cart lines.
func (s *Scheduler) ReservationsBySession(ctx context.Context, sessionID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.ReservationsBySession(tx, sessionID)
		return err
	})
	return out, err
}

// ReservationsByToken returns every line sharing token.
func (s *Scheduler) ReservationsByToken(ctx context.Context, token uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.ReservationsByToken(tx, token)
		return err
	})
	return out, err
}

// ReservationsByAllocation returns reservations directly targeting allocationID.
func (s *Scheduler) ReservationsByAllocation(ctx context.Context, allocationID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.ReservationsByAllocation(tx, allocationID)
		return err
	})
	return out, err
}

// ReservationsByGroup returns reservations targeting group.
func (s *Scheduler) ReservationsByGroup(ctx context.Context, group string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.ReservationsByGroup(tx, group)
		return err
	})
	return out, err
}

// CartSummaries groups sessionID's cart lines by token.
func (s *Scheduler) CartSummaries(ctx context.Context, sessionID string) ([]query.CartSummary, error) {
	var out []query.CartSummary
	err := s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = query.CartSummaries(tx, sessionID)
		return err
	})
	return out, err
}

// FreeAllocationsCount reports free capacity across master's mirror family.
func (s *Scheduler) FreeAllocationsCount(ctx context.Context, master model.Allocation) (quota, used, free int, err error) {
	err = s.sessions.ReadTx(ctx, func(tx *gorm.DB) error {
		var e error
		quota, used, free, e = query.FreeAllocationsCount(tx, master)
		return e
	})
	return quota, used, free, err
}
