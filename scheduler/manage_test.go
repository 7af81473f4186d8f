package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cohub/reservations/model"
	"github.com/cohub/reservations/reserveerr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestChangeAllocation_UpdatesAttrsWithoutQuotaChange(t *testing.T) {
	s, mock := newMockScheduler(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE id = \$1 AND resource = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mirror_of", "resource"}).
			AddRow(id, id, "room-1"))
	mock.ExpectExec(`UPDATE "allocations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	limit := 3
	err := s.ChangeAllocation(context.Background(), id, ChangeAttrs{QuotaLimit: &limit})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveAllocation_RejectsWhenSlotsExist(t *testing.T) {
	s, mock := newMockScheduler(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mirror_of", "resource"}).
			AddRow(id, id, "room-1"))
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE mirror_of = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mirror_of"}).
			AddRow(id, id))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "reserved_slots"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := s.RemoveAllocation(context.Background(), &id, nil)
	require.ErrorIs(t, err, reserveerr.ErrAffectedReservation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResizeFamily_ShrinkDeletesOnlyFreeMembers(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	masterID, freeMirrorID, occupiedMirrorID := uuid.New(), uuid.New(), uuid.New()
	master := model.Allocation{ID: masterID, MirrorOf: masterID}

	// Members come back ordered by id: master (free), a free mirror, then
	// an occupied mirror last — the tail-by-id member is the one still in
	// use, so a naive members[newQuota:] deletion would remove it and
	// orphan its slot instead of the free mirror ahead of it.
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE mirror_of = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mirror_of"}).
			AddRow(masterID, masterID).
			AddRow(freeMirrorID, masterID).
			AddRow(occupiedMirrorID, masterID))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "reserved_slots" WHERE allocation_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "reserved_slots" WHERE allocation_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "reserved_slots" WHERE allocation_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM "allocations" WHERE`).
		WithArgs(freeMirrorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "allocations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = resizeFamily(db, master, 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveUnusedAllocations_SkipsGroupedWhenExcluded(t *testing.T) {
	s, mock := newMockScheduler(t)
	group := "g1"
	id := uuid.New()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mirror_of", "resource", "group"}).
			AddRow(id, id, "room-1", group))
	mock.ExpectCommit()

	removed, err := s.RemoveUnusedAllocations(context.Background(), start, end, nil, nil, true)
	require.NoError(t, err)
	require.Equal(t, 0, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
