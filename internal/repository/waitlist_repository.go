package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

// WaitlistRepository handles persistence of waitlist entries. Positions
// come from a per-hall counter row that only ever increases, so a
// position is never reused even after the entry holding it is removed.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Add appends an application to the hall waitlist. The application must
// not hold an active allocation or an existing waitlist entry; both
// checks run inside the insert transaction.
func (r *WaitlistRepository) Add(ctx context.Context, applicationID, hallID, studentID string, scoreSnapshot float64) (entry *models.WaitlistEntry, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin waitlist transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	const entryQuery = `SELECT 1 FROM waitlist_entries WHERE application_id = $1 LIMIT 1`
	if err = tx.GetContext(ctx, &exists, entryQuery, applicationID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already waitlisted")
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check waitlist entry: %w", err)
	}

	const activeQuery = `SELECT 1 FROM allocations WHERE student_id = $1 AND status = 'ACTIVE' LIMIT 1`
	if err = tx.GetContext(ctx, &exists, activeQuery, studentID); err == nil {
		return nil, appErrors.ErrAlreadyAllocated
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check active allocation: %w", err)
	}
	err = nil

	var position int
	const counterQuery = `INSERT INTO waitlist_counters (hall_id, last_position) VALUES ($1, 1)
        ON CONFLICT (hall_id) DO UPDATE SET last_position = waitlist_counters.last_position + 1
        RETURNING last_position`
	if err = tx.GetContext(ctx, &position, counterQuery, hallID); err != nil {
		return nil, fmt.Errorf("advance waitlist counter: %w", err)
	}

	record := &models.WaitlistEntry{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		HallID:        hallID,
		Position:      position,
		ScoreSnapshot: scoreSnapshot,
		CreatedAt:     time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO waitlist_entries (id, application_id, hall_id, position, score_snapshot, created_at)
        VALUES (:id, :application_id, :hall_id, :position, :score_snapshot, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, record); err != nil {
		return nil, fmt.Errorf("insert waitlist entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit waitlist add: %w", err)
	}
	return record, nil
}

// List returns waitlist entries for the hall in position order.
func (r *WaitlistRepository) List(ctx context.Context, hallID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT w.id, w.application_id, w.hall_id, w.position, w.score_snapshot, w.created_at,
        COALESCE(a.student_id, '') AS student_id, COALESCE(a.student_name, '') AS student_name,
        COALESCE(a.department, '') AS department
        FROM waitlist_entries w
        LEFT JOIN applications a ON a.id = w.application_id
        WHERE w.hall_id = $1
        ORDER BY w.position ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, hallID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

// FindByID returns a waitlist entry by its ID.
func (r *WaitlistRepository) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	const query = `SELECT id, application_id, hall_id, position, score_snapshot, created_at FROM waitlist_entries WHERE id = $1`
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// BulkRemove deletes the listed entries without touching rooms or
// allocations. Returns the number of rows removed.
func (r *WaitlistRepository) BulkRemove(ctx context.Context, hallID string, entryIDs []string) (int64, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(entryIDs))
	args := make([]interface{}, 0, len(entryIDs)+1)
	args = append(args, hallID)
	for i, id := range entryIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("DELETE FROM waitlist_entries WHERE hall_id = $1 AND id IN (%s)", strings.Join(placeholders, ","))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk remove waitlist entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk remove result: %w", err)
	}
	return affected, nil
}
