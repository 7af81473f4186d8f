package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cohub/reservations/calendar"
	"github.com/cohub/reservations/events"
	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/query"
	"github.com/cohub/reservations/reserveerr"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReserveLine is one requested window within a Reserve call.
type ReserveLine struct {
	Start time.Time
	End   time.Time
	Naive bool
	// Quota overrides ReserveInput.Quota for this line when non-zero.
	Quota int
}

// ReserveInput is Reserve's argument bundle (spec §4.5).
type ReserveInput struct {
	Email     string
	SessionID string
	Lines     []ReserveLine
	// Group, when set, makes every line a group-targeted reservation
	// instead of a direct allocation reference; resolution to a concrete
	// allocation happens at ApproveReservation time.
	Group                 *string
	Data                   datatypes.JSON
	Quota                  int
	SingleTokenPerSession  bool
}

// Reserve creates one pending Reservation per line (spec §4.5).
func (s *Scheduler) Reserve(ctx context.Context, in ReserveInput) ([]model.Reservation, error) {
	if !strings.Contains(in.Email, "@") {
		return nil, reserveerr.ErrInvalidEmail
	}
	if len(in.Lines) == 0 {
		return nil, reserveerr.ErrReservationParamsInvalid
	}
	defaultQuota := in.Quota
	if defaultQuota <= 0 {
		defaultQuota = 1
	}

	var created []model.Reservation
	err := s.sessions.WriteTx(ctx, func(tx *gorm.DB) error {
		token, err := s.resolveToken(tx, in)
		if err != nil {
			return err
		}

		for _, line := range in.Lines {
			quota := line.Quota
			if quota <= 0 {
				quota = defaultQuota
			}
			start := calendar.ToUTC(line.Start, s.tz, line.Naive)
			end := calendar.ToUTC(line.End, s.tz, line.Naive)

			var target string
			var targetType model.TargetType
			if in.Group != nil {
				target = *in.Group
				targetType = model.TargetGroup
				if err := s.validateGroupLine(tx, *in.Group, start, end, quota); err != nil {
					return err
				}
			} else {
				master, err := s.coveringMaster(tx, start, end)
				if err != nil {
					return err
				}
				if err := validateLineAgainstAllocation(*master, start, end, quota); err != nil {
					return err
				}
				target = master.ID.String()
				targetType = model.TargetAllocation
			}

			reservation := model.Reservation{
				Token:      token,
				Target:     target,
				TargetType: targetType,
				Resource:   s.resource,
				Start:      start,
				End:        end,
				Quota:      quota,
				Status:     model.StatusPending,
				Email:      in.Email,
				SessionID:  sessionIDPtr(in.SessionID),
				Data:       in.Data,
				Type:       model.LineFree,
			}

			if dup, err := cartDuplicate(tx, in.SessionID, reservation.CartKey()); err != nil {
				return err
			} else if dup != nil {
				return reserveerr.WithReservation(reserveerr.ErrAlreadyReserved, dup.ID.String(), dup.Token.String())
			}

			if err := tx.Create(&reservation).Error; err != nil {
				return fmt.Errorf("scheduler: creating reservation: %w", err)
			}
			created = append(created, reservation)
		}

		return s.hooks.Emit(ctx, events.ReservationsMade, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func sessionIDPtr(sessionID string) *string {
	if sessionID == "" {
		return nil
	}
	return &sessionID
}

func (s *Scheduler) resolveToken(tx *gorm.DB, in ReserveInput) (uuid.UUID, error) {
	if in.SingleTokenPerSession && in.SessionID != "" {
		existing, err := query.ReservationsBySession(tx, in.SessionID)
		if err != nil {
			return uuid.Nil, err
		}
		if len(existing) > 0 {
			return existing[0].Token, nil
		}
	}
	return uuid.New(), nil
}

// coveringMaster finds the single master allocation on this resource whose
// window fully contains [start,end).
func (s *Scheduler) coveringMaster(tx *gorm.DB, start, end time.Time) (*model.Allocation, error) {
	var master model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id", s.resource).
		Where("start <= ? AND \"end\" >= ?", start, end).
		Order("start").
		First(&master).Error
	if err != nil {
		return nil, reserveerr.ErrNotReservable
	}
	return &master, nil
}

// validateLineAgainstAllocation checks spec §4.5's per-line reserve rules
// against a directly targeted allocation.
func validateLineAgainstAllocation(alloc model.Allocation, start, end time.Time, quota int) error {
	if !alloc.Covers(start, end) {
		return reserveerr.ErrReservationOutOfBounds
	}
	if !alloc.PartlyAvailable {
		if !start.Equal(alloc.Start) || !end.Equal(alloc.End) {
			return reserveerr.ErrReservationTooLong
		}
	} else {
		raster := alloc.RasterDuration()
		if !calendar.IsRasterAligned(start, alloc.Start, raster) || !calendar.IsRasterAligned(end, alloc.Start, raster) {
			return reserveerr.ErrReservationParamsInvalid
		}
	}
	if alloc.QuotaLimit > 0 && quota > alloc.QuotaLimit {
		return reserveerr.ErrQuotaOverLimit
	}
	if quota > alloc.Quota {
		return reserveerr.ErrQuotaImpossible
	}
	return nil
}

// validateGroupLine checks that at least one allocation in group could
// eventually satisfy [start,end) at this quota; the concrete allocation is
// chosen later, at approval time.
func (s *Scheduler) validateGroupLine(tx *gorm.DB, group string, start, end time.Time, quota int) error {
	var masters []model.Allocation
	err := tx.Where("resource = ? AND mirror_of = id AND \"group\" = ?", s.resource, group).
		Where("start <= ? AND \"end\" >= ?", start, end).
		Find(&masters).Error
	if err != nil {
		return err
	}
	if len(masters) == 0 {
		return reserveerr.ErrNotReservable
	}
	for _, master := range masters {
		if validateLineAgainstAllocation(master, start, end, quota) == nil {
			return nil
		}
	}
	return reserveerr.ErrReservationParamsInvalid
}

// cartDuplicate reports the existing pending reservation in sessionID's
// cart sharing key, if any (spec §3: "within a single session cart,
// (resource, target, start, end, quota) is unique").
func cartDuplicate(tx *gorm.DB, sessionID string, key model.CartKey) (*model.Reservation, error) {
	var existing model.Reservation
	err := tx.Where("session_id = ? AND resource = ? AND target = ? AND start = ? AND \"end\" = ? AND quota = ? AND status = ?",
		sessionID, key.Resource, key.Target, key.Start, key.End, key.Quota, model.StatusPending).
		First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &existing, nil
}
