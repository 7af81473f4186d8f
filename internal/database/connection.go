// Package database adapts the teacher's connection/migration layer
// (internal/database/connection.go) to the reservations engine's own
// three-table schema, for callers that want migration and connection-pool
// setup without going through registry.Context's lazy-open path (e.g.
// cmd/migrate).
package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cohub/reservations/model"
)

// Connect opens a connection to databaseURL, tunes its pool the way the
// teacher's Connect does, and runs Migrate against it.
func Connect(databaseURL string) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("database: connecting: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: getting underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database: pinging: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("database: migrating: %w", err)
	}

	slog.Info("reservations: database connected and migrated")
	return db, nil
}

// Migrate auto-migrates the three persisted entities (spec §3/§6), which
// includes the reserved-slot composite primary key, and layers on the
// supplementary indexes and check constraints that GORM's AutoMigrate
// alone doesn't express.
func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&model.Allocation{},
		&model.ReservedSlot{},
		&model.Reservation{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("database: migrating %T: %w", m, err)
		}
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("database: creating indexes: %w", err)
	}
	if err := createConstraints(db); err != nil {
		return fmt.Errorf("database: creating constraints: %w", err)
	}
	return nil
}

// createIndexes adds the indexes spec §6 names explicitly
// ("(resource, start, end)" for masters, "(token)" for reservations,
// "(session_id)" for carts) beyond what the gorm tags on model.Allocation
// already declare inline. Failures are logged, not fatal, matching the
// teacher's createIndexes — a missing supplementary index degrades query
// speed, it doesn't break correctness.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_allocations_mirror_of ON allocations(mirror_of)",
		"CREATE INDEX IF NOT EXISTS idx_reservations_token ON reservations(token)",
		"CREATE INDEX IF NOT EXISTS idx_reservations_session_id ON reservations(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_reservations_target ON reservations(target, target_type)",
		"CREATE INDEX IF NOT EXISTS idx_reserved_slots_token ON reserved_slots(reservation_token)",
	}
	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			slog.Warn("reservations: failed to create index", "query", index, "error", err)
		}
	}
	return nil
}

// createConstraints adds check constraints spec §3 documents as invariants
// but that aren't expressible as a gorm struct tag (ReservedSlot's
// start<end, Allocation's quota_limit bound). Postgres has no
// "ADD CONSTRAINT IF NOT EXISTS", so each statement is wrapped in a
// do-block that swallows the "constraint already exists" error and leaves
// every other failure to propagate to the slog.Warn below.
func createConstraints(db *gorm.DB) error {
	constraints := []struct {
		table, name, check string
	}{
		{"reserved_slots", "chk_slot_time", `"end" > start`},
		{"allocations", "chk_alloc_time", `"end" > start`},
		{"reservations", "chk_reservation_time", `"end" > start`},
		{"allocations", "chk_alloc_quota_limit", "quota_limit >= 0"},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`DO $$ BEGIN
			ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;`, c.table, c.name, c.check)
		if err := db.Exec(stmt).Error; err != nil {
			slog.Warn("reservations: failed to create constraint", "table", c.table, "constraint", c.name, "error", err)
		}
	}
	return nil
}

// CloseConnection closes the underlying *sql.DB, matching the teacher's
// explicit shutdown helper.
func CloseConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: getting underlying *sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("database: closing: %w", err)
	}
	slog.Info("reservations: database connection closed")
	return nil
}
