package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

// InterviewRepository handles persistence of interview slots.
type InterviewRepository struct {
	db *sqlx.DB
}

// NewInterviewRepository constructs the repository.
func NewInterviewRepository(db *sqlx.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

// ScheduleBatchParams describes one scheduling call.
type ScheduleBatchParams struct {
	ApplicationIDs []string
	HallID         string
	Date           string
	Time           string
	Venue          string
}

// ScheduleBatch creates or overwrites the interview slot for each
// application and flips its status to Scheduled, all in one transaction.
// Any application in a terminal status aborts the whole batch.
func (r *InterviewRepository) ScheduleBatch(ctx context.Context, params ScheduleBatchParams) (interviews []models.Interview, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schedule transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	interviews = make([]models.Interview, 0, len(params.ApplicationIDs))

	for _, appID := range params.ApplicationIDs {
		var current struct {
			ID     string                   `db:"id"`
			Status models.ApplicationStatus `db:"status"`
		}
		const appQuery = `SELECT id, status FROM applications WHERE id = $1 AND hall_id = $2 FOR UPDATE`
		if err = tx.GetContext(ctx, &current, appQuery, appID, params.HallID); err != nil {
			if err == sql.ErrNoRows {
				err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("application %s not found", appID))
			}
			return nil, err
		}
		if current.Status.IsTerminal() {
			err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("application %s already finalised", appID))
			return nil, err
		}

		interview := models.Interview{
			ID:            uuid.NewString(),
			ApplicationID: appID,
			HallID:        params.HallID,
			Date:          params.Date,
			Time:          params.Time,
			Venue:         params.Venue,
			CreatedAt:     now,
		}
		const upsertQuery = `INSERT INTO interviews (id, application_id, hall_id, interview_date, interview_time, venue, created_at)
            VALUES (:id, :application_id, :hall_id, :interview_date, :interview_time, :venue, :created_at)
            ON CONFLICT (application_id) DO UPDATE
            SET interview_date = EXCLUDED.interview_date, interview_time = EXCLUDED.interview_time,
                venue = EXCLUDED.venue, score = NULL, confirmed_at = NULL`
		if _, err = tx.NamedExecContext(ctx, upsertQuery, interview); err != nil {
			return nil, fmt.Errorf("upsert interview: %w", err)
		}

		const statusQuery = `UPDATE applications SET status = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, statusQuery, appID, models.ApplicationStatusScheduled); err != nil {
			return nil, fmt.Errorf("mark application scheduled: %w", err)
		}
		interviews = append(interviews, interview)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit schedule: %w", err)
	}
	return interviews, nil
}

// FindByID returns an interview by its ID.
func (r *InterviewRepository) FindByID(ctx context.Context, id string) (*models.Interview, error) {
	const query = `SELECT id, application_id, hall_id, interview_date, interview_time, venue, score, confirmed_at, created_at
        FROM interviews WHERE id = $1`
	var interview models.Interview
	if err := r.db.GetContext(ctx, &interview, query, id); err != nil {
		return nil, err
	}
	return &interview, nil
}

// FindByApplication returns the interview slot held by an application.
func (r *InterviewRepository) FindByApplication(ctx context.Context, applicationID string) (*models.Interview, error) {
	const query = `SELECT id, application_id, hall_id, interview_date, interview_time, venue, score, confirmed_at, created_at
        FROM interviews WHERE application_id = $1`
	var interview models.Interview
	if err := r.db.GetContext(ctx, &interview, query, applicationID); err != nil {
		return nil, err
	}
	return &interview, nil
}

// List returns interview details for the hall, optionally restricted to
// the awaiting-score working set.
func (r *InterviewRepository) List(ctx context.Context, filter models.InterviewFilter) ([]models.InterviewDetail, error) {
	query := `SELECT i.id, i.application_id, i.hall_id, i.interview_date, i.interview_time, i.venue, i.score, i.confirmed_at, i.created_at,
        a.student_id, a.student_name, a.department, a.application_score, a.status
        FROM interviews i
        JOIN applications a ON a.id = i.application_id
        WHERE i.hall_id = $1`
	args := []interface{}{filter.HallID}
	if filter.AwaitingOnly {
		query += " AND i.confirmed_at IS NULL AND a.status = 'Scheduled'"
	}
	if filter.Date != "" {
		query += fmt.Sprintf(" AND i.interview_date = $%d", len(args)+1)
		args = append(args, filter.Date)
	}
	query += " ORDER BY i.interview_date ASC, i.interview_time ASC"

	var interviews []models.InterviewDetail
	if err := r.db.SelectContext(ctx, &interviews, query, args...); err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}
	return interviews, nil
}

// ConfirmScore records the interview score and stamps confirmation,
// removing the interview from the scheduling queue. One-way: an already
// confirmed interview cannot be re-scored.
func (r *InterviewRepository) ConfirmScore(ctx context.Context, id string, score float64) (*models.Interview, error) {
	const query = `UPDATE interviews SET score = $2, confirmed_at = $3
        WHERE id = $1 AND confirmed_at IS NULL
        RETURNING id, application_id, hall_id, interview_date, interview_time, venue, score, confirmed_at, created_at`
	var interview models.Interview
	err := r.db.GetContext(ctx, &interview, query, id, score, time.Now().UTC())
	if err == sql.ErrNoRows {
		// Either unknown or already confirmed; disambiguate for the caller.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "interview score already confirmed")
	}
	if err != nil {
		return nil, fmt.Errorf("confirm interview score: %w", err)
	}
	return &interview, nil
}
