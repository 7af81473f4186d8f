package session

import (
	"github.com/cohub/reservations/reserveerr"
	"gorm.io/gorm"
)

const (
	readOnlyCallbackName = "reservations:block_write"
	readOnlySettingKey   = "reservations:read_only"
)

// blockWrite is registered as a Before hook on the create/update/delete
// callback chains. For a statement issued through the read-only *gorm.DB
// (one carrying readOnlySettingKey) it never touches the database — it
// fails the statement before gorm builds any SQL for it — so a read
// session can never issue a write, whatever chain of *gorm.DB methods a
// caller uses to get there (spec §4.2: "ModifiedReadOnlySession").
// Statements without the marker pass through untouched.
func blockWrite(db *gorm.DB) {
	if ro, ok := db.Get(readOnlySettingKey); ok && ro == true {
		_ = db.AddError(reserveerr.ErrModifiedReadOnlySession)
	}
}

// newReadOnlyDB derives a session from db that carries the read-only
// marker and installs the write-blocking observer, per spec §9: "Implement
// as an observer on the read-session driver." gorm sessions share their
// parent's callback chain, so the observer is registered on db's chain too
// and tells the two apart by the marker.
func newReadOnlyDB(db *gorm.DB) (*gorm.DB, error) {
	ro := db.Session(&gorm.Session{NewDB: true}).Set(readOnlySettingKey, true).Session(&gorm.Session{})

	if err := ro.Callback().Create().Before("gorm:create").Register(readOnlyCallbackName, blockWrite); err != nil {
		return nil, err
	}
	if err := ro.Callback().Update().Before("gorm:update").Register(readOnlyCallbackName, blockWrite); err != nil {
		return nil, err
	}
	if err := ro.Callback().Delete().Before("gorm:delete").Register(readOnlyCallbackName, blockWrite); err != nil {
		return nil, err
	}
	return ro, nil
}
