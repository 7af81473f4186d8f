// Package registry gives callers an explicit place to hold scheduler
// contexts instead of a process-wide global (spec §9: "re-architect as an
// explicit value: an application owns a Registry, passes it to Scheduler
// constructors"). A context bundles the per-resource-pool settings
// (timezone, dsn, JSON codec, session provider) and the services built
// from them, with lazy caching the way the teacher's service layer
// constructs one repository per concern on demand rather than eagerly.
package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cohub/reservations/session"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Settings configures one scheduler context (spec §6: "Configuration.
// Enumerated: timezone, dsn, json_serializer, json_deserializer,
// allocation_cls, reservation_cls, session_provider_factory").
//
// allocation_cls/reservation_cls are re-architected per spec §9: instead
// of a caller substituting an ORM subclass, Allocation/Reservation each
// carry an opaque Data blob (gorm.io/datatypes.JSON). JSONSerializer/
// JSONDeserializer below are held on the context's Settings for callers
// to encode/decode that blob with; the engine itself does not call them
// and passes Data through as raw JSON.
type Settings struct {
	// Timezone is the default IANA zone for schedulers created under
	// this context that don't specify their own. Defaults to "UTC".
	Timezone string

	// DSN is the Postgres connection string, passed to OpenDB.
	DSN string

	// OpenDB overrides how the context obtains a *gorm.DB — tests set
	// this to hand in a sqlmock-backed connection instead of dialing a
	// real DSN.
	OpenDB func(dsn string) (*gorm.DB, error)

	// JSONSerializer/JSONDeserializer are the codec for the opaque
	// Allocation.Data/Reservation.Data blobs, for callers to use; the
	// engine does not call them. Default to encoding/json.
	JSONSerializer   func(v any) ([]byte, error)
	JSONDeserializer func(data []byte, v any) error

	// SessionProviderFactory overrides how the context builds its
	// session.Sessions from an opened *gorm.DB. Tests use this to plug
	// in custom retry policies or a shared metrics registerer.
	SessionProviderFactory func(db *gorm.DB) (*session.Sessions, error)
}

func (s Settings) withDefaults() Settings {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.OpenDB == nil {
		s.OpenDB = defaultOpenDB
	}
	if s.JSONSerializer == nil {
		s.JSONSerializer = json.Marshal
	}
	if s.JSONDeserializer == nil {
		s.JSONDeserializer = json.Unmarshal
	}
	if s.SessionProviderFactory == nil {
		s.SessionProviderFactory = func(db *gorm.DB) (*session.Sessions, error) {
			return session.New(db)
		}
	}
	return s
}

// Location resolves Timezone to a *time.Location, defaulting to UTC on an
// empty or unrecognized zone name.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultOpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("registry: opening database: %w", err)
	}
	return db, nil
}
