package database

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestCreateIndexes_LogsRatherThanFailsOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`CREATE INDEX`).WillReturnError(errors.New("already exists"))
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := createIndexes(db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConstraints_LogsRatherThanFailsOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectExec(`ALTER TABLE`).WillReturnError(errors.New("duplicate_object"))
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`ALTER TABLE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := createConstraints(db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
