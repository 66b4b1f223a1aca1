package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

func TestInterviewRepositoryScheduleBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInterviewRepository(db)

	mock.ExpectBegin()
	for _, appID := range []string{"app-1", "app-2"} {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status FROM applications WHERE id = $1 AND hall_id = $2 FOR UPDATE")).
			WithArgs(appID, "hall-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(appID, "Pending"))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO interviews")).
			WithArgs(sqlmock.AnyArg(), appID, "hall-1", "2026-09-10", "10:00", "Common Room", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $2 WHERE id = $1")).
			WithArgs(appID, models.ApplicationStatusScheduled).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	interviews, err := repo.ScheduleBatch(context.Background(), ScheduleBatchParams{
		ApplicationIDs: []string{"app-1", "app-2"},
		HallID:         "hall-1",
		Date:           "2026-09-10",
		Time:           "10:00",
		Venue:          "Common Room",
	})
	require.NoError(t, err)
	require.Len(t, interviews, 2)
	assert.Equal(t, "app-1", interviews[0].ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterviewRepositoryScheduleBatchTerminalAborts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInterviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("app-1", "hall-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("app-1", "Rejected"))
	mock.ExpectRollback()

	_, err := repo.ScheduleBatch(context.Background(), ScheduleBatchParams{
		ApplicationIDs: []string{"app-1", "app-2"},
		HallID:         "hall-1",
		Date:           "2026-09-10",
		Time:           "10:00",
		Venue:          "Common Room",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInterviewRepositoryFindByApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInterviewRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM interviews WHERE application_id = $1")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "hall_id", "interview_date", "interview_time", "venue", "score", "confirmed_at", "created_at"}).
			AddRow("int-1", "app-1", "hall-1", "2026-09-10", "10:00", "Common Room", nil, nil, now))

	interview, err := repo.FindByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", interview.ApplicationID)
	assert.Nil(t, interview.ConfirmedAt)
}

func TestInterviewRepositoryConfirmScore(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInterviewRepository(db)

	now := time.Now().UTC()
	score := 4.5
	rows := sqlmock.NewRows([]string{"id", "application_id", "hall_id", "interview_date", "interview_time", "venue", "score", "confirmed_at", "created_at"}).
		AddRow("int-1", "app-1", "hall-1", "2026-09-10", "10:00", "Common Room", score, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE interviews SET score = $2, confirmed_at = $3")).
		WithArgs("int-1", score, sqlmock.AnyArg()).
		WillReturnRows(rows)

	interview, err := repo.ConfirmScore(context.Background(), "int-1", score)
	require.NoError(t, err)
	require.NotNil(t, interview.Score)
	assert.Equal(t, score, *interview.Score)
	require.NotNil(t, interview.ConfirmedAt)
}

func TestInterviewRepositoryConfirmScoreAlreadyConfirmed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewInterviewRepository(db)

	now := time.Now().UTC()
	score := 4.0

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE interviews SET score = $2, confirmed_at = $3")).
		WithArgs("int-1", 3.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM interviews WHERE id = $1")).
		WithArgs("int-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "hall_id", "interview_date", "interview_time", "venue", "score", "confirmed_at", "created_at"}).
			AddRow("int-1", "app-1", "hall-1", "2026-09-10", "10:00", "Common Room", score, now, now))

	_, err := repo.ConfirmScore(context.Background(), "int-1", 3.0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
