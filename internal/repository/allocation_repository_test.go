package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func roomRows(occupancy, capacity int, status models.RoomStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "hall_id", "floor_number", "room_number", "capacity", "current_occupancy", "status", "created_at", "updated_at"}).
		AddRow("room-1", "hall-1", 1, "101", capacity, occupancy, string(status), now, now)
}

func allocationRows(id, roomID string, status models.AllocationStatus, expiresAt time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "application_id", "student_id", "room_id", "hall_id", "status", "reason", "allocated_at", "vacated_at", "vacation_reason", "renewal_expires_at"}).
		AddRow(id, sql.NullString{String: "app-1", Valid: true}, "student-1", roomID, "hall-1", string(status), nil, now, nil, nil, expiresAt)
}

func TestAllocationRepositoryAssign(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	appID := "app-1"
	expires := time.Now().UTC().AddDate(1, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(1, 2, models.RoomStatusAvailable))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM allocations WHERE student_id = $1 AND status = 'ACTIVE'")).
		WithArgs("student-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO allocations")).
		WithArgs(sqlmock.AnyArg(), &appID, "student-1", "room-1", "hall-1", models.AllocationStatusActive, nil, sqlmock.AnyArg(), expires).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms")).
		WithArgs("room-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $2 WHERE id = $1")).
		WithArgs("app-1", models.ApplicationStatusAlloted).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM waitlist_entries WHERE application_id = $1")).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(1, 0))
	mock.ExpectCommit()

	alloc, err := repo.Assign(context.Background(), AssignParams{
		ApplicationID:    &appID,
		StudentID:        "student-1",
		RoomID:           "room-1",
		HallID:           "hall-1",
		RenewalExpiresAt: expires,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusActive, alloc.Status)
	assert.Equal(t, "room-1", alloc.RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryAssignRoomFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(2, 2, models.RoomStatusOccupied))
	mock.ExpectRollback()

	_, err := repo.Assign(context.Background(), AssignParams{
		StudentID: "student-1",
		RoomID:    "room-1",
		HallID:    "hall-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRoomFull)
}

func TestAllocationRepositoryAssignRoomNotEligible(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(0, 2, models.RoomStatusMaintenance))
	mock.ExpectRollback()

	_, err := repo.Assign(context.Background(), AssignParams{
		StudentID: "student-1",
		RoomID:    "room-1",
		HallID:    "hall-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRoomNotEligible)
}

func TestAllocationRepositoryAssignAlreadyAllocated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(0, 2, models.RoomStatusAvailable))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM allocations")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Assign(context.Background(), AssignParams{
		StudentID: "student-1",
		RoomID:    "room-1",
		HallID:    "hall-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyAllocated)
}

func TestAllocationRepositoryTransfer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	expires := time.Now().UTC().AddDate(1, 0, 0)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM allocations WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("alloc-1", "hall-1").
		WillReturnRows(allocationRows("alloc-1", "room-1", models.AllocationStatusActive, expires))
	// Rooms locked in sorted id order: room-1 before room-2.
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(1, 2, models.RoomStatusAvailable))
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("room-2", "hall-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "floor_number", "room_number", "capacity", "current_occupancy", "status", "created_at", "updated_at"}).
			AddRow("room-2", "hall-1", 2, "201", 2, 0, "AVAILABLE", now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms")).
		WithArgs("room-1", -1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms")).
		WithArgs("room-2", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET room_id = $2 WHERE id = $1")).
		WithArgs("alloc-1", "room-2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	alloc, err := repo.Transfer(context.Background(), "alloc-1", "room-2", "hall-1")
	require.NoError(t, err)
	assert.Equal(t, "room-2", alloc.RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryTransferSameRoom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	expires := time.Now().UTC().AddDate(1, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alloc-1", "hall-1").
		WillReturnRows(allocationRows("alloc-1", "room-1", models.AllocationStatusActive, expires))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), "alloc-1", "room-1", "hall-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAllocationRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	expires := time.Now().UTC().AddDate(1, 0, 0)
	reason := "disciplinary"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM allocations WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("alloc-1", "hall-1").
		WillReturnRows(allocationRows("alloc-1", "room-1", models.AllocationStatusActive, expires))
	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
		WithArgs("room-1", "hall-1").
		WillReturnRows(roomRows(1, 2, models.RoomStatusAvailable))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allocations SET status = 'VACATED'")).
		WithArgs("alloc-1", sqlmock.AnyArg(), &reason).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms")).
		WithArgs("room-1", -1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	alloc, err := repo.Cancel(context.Background(), "alloc-1", "hall-1", &reason)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStatusVacated, alloc.Status)
	require.NotNil(t, alloc.VacatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepositoryCancelAlreadyVacated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	expires := time.Now().UTC().AddDate(1, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alloc-1", "hall-1").
		WillReturnRows(allocationRows("alloc-1", "room-1", models.AllocationStatusVacated, expires))
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), "alloc-1", "hall-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
