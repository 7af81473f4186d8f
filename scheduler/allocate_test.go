package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAllocate_CreatesMasterAndMirrors(t *testing.T) {
	s, mock := newMockScheduler(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	// The master's RETURNING row is left empty so the id BeforeCreate
	// generated (and copied into MirrorOf) is kept, as a real database
	// would echo that same id back.
	mock.ExpectQuery(`INSERT INTO "allocations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "allocations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	created, err := s.Allocate(context.Background(), []DateRange{{Start: start, End: end}}, AllocateOptions{Quota: 2})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.True(t, created[0].IsMaster())
	require.Equal(t, created[0].ID, created[1].MirrorOf)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocate_RejectsInvertedWindow(t *testing.T) {
	s, _ := newMockScheduler(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.Allocate(context.Background(), []DateRange{{Start: start, End: start}}, AllocateOptions{})
	require.Error(t, err)
}
