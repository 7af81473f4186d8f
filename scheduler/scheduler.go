// Package scheduler implements the reservations engine's public API (spec
// §4.3-§4.8): allocate/change/move/remove for allocations, reserve/approve/
// deny/remove for reservations, group handling, quota bookkeeping, and
// availability reporting. Every mutating method runs inside exactly one
// serializable transaction via session.Sessions.WriteTx; every read-only
// method runs against the dedicated read session via ReadTx, delegating the
// actual SQL to the query package.
package scheduler

import (
	"time"

	"github.com/cohub/reservations/events"
	"github.com/cohub/reservations/session"
)

// Scheduler is bound to one (context, resource) pair, the shape spec §6
// describes as "Scheduler(context_name, resource_id, timezone)".
type Scheduler struct {
	resource string
	tz       *time.Location
	sessions *session.Sessions
	hooks    *events.Hooks
}

// New builds a Scheduler for resource, using tz as the default timezone for
// naive input timestamps. hooks may be nil, equivalent to no listeners.
func New(sessions *session.Sessions, resource string, tz *time.Location, hooks *events.Hooks) *Scheduler {
	if tz == nil {
		tz = time.UTC
	}
	return &Scheduler{resource: resource, tz: tz, sessions: sessions, hooks: hooks}
}

// Resource returns the resource id this scheduler is bound to.
func (s *Scheduler) Resource() string { return s.resource }

// Timezone returns the default timezone this scheduler localizes naive
// timestamps against.
func (s *Scheduler) Timezone() *time.Location { return s.tz }
