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

const renewalColumns = `id, allocation_id, hall_id, student_id, academic_year, remarks, proof_attachment, status, requested_at, reviewed_at, reviewer_id, review_note, extension_months`

// RenewalRepository handles persistence of renewal requests.
type RenewalRepository struct {
	db *sqlx.DB
}

// NewRenewalRepository constructs the repository.
func NewRenewalRepository(db *sqlx.DB) *RenewalRepository {
	return &RenewalRepository{db: db}
}

// Create persists a new renewal request.
func (r *RenewalRepository) Create(ctx context.Context, request *models.RenewalRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.RenewalStatusPending
	}
	const query = `INSERT INTO renewal_requests (id, allocation_id, hall_id, student_id, academic_year, remarks, proof_attachment, status, requested_at)
        VALUES (:id, :allocation_id, :hall_id, :student_id, :academic_year, :remarks, :proof_attachment, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create renewal request: %w", err)
	}
	return nil
}

// List returns renewal requests filtered by the provided criteria.
func (r *RenewalRepository) List(ctx context.Context, filter models.RenewalFilter) ([]models.RenewalRequest, int, error) {
	base := "FROM renewal_requests"
	var conditions []string
	var args []interface{}

	if filter.HallID != "" {
		conditions = append(conditions, fmt.Sprintf("hall_id = $%d", len(args)+1))
		args = append(args, filter.HallID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY requested_at DESC LIMIT %d OFFSET %d",
		renewalColumns, base+clause, size, offset)

	var requests []models.RenewalRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list renewal requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count renewal requests: %w", err)
	}
	return requests, total, nil
}

// FindByID returns a renewal request by its ID.
func (r *RenewalRepository) FindByID(ctx context.Context, id string) (*models.RenewalRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM renewal_requests WHERE id = $1", renewalColumns)
	var request models.RenewalRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsOpenForAllocation checks for a pending or in-review request.
func (r *RenewalRepository) ExistsOpenForAllocation(ctx context.Context, allocationID string) (bool, error) {
	const query = `SELECT 1 FROM renewal_requests WHERE allocation_id = $1 AND status IN ('PENDING', 'UNDER_REVIEW') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, allocationID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open renewal: %w", err)
	}
	return true, nil
}

// DecideParams carries a review decision.
type DecideParams struct {
	RequestID       string
	HallID          string
	Status          models.RenewalStatus
	ReviewerID      string
	Note            *string
	ExtensionMonths *int
}

// Decide applies a review decision in one transaction. Approval locks
// the owning allocation and pushes renewal_expires_at forward from its
// prior value by the granted months. Terminal requests cannot be
// re-decided.
func (r *RenewalRepository) Decide(ctx context.Context, params DecideParams) (request *models.RenewalRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decide transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.RenewalRequest
	lockQuery := fmt.Sprintf("SELECT %s FROM renewal_requests WHERE id = $1 AND hall_id = $2 FOR UPDATE", renewalColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, params.RequestID, params.HallID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "renewal request not found")
		}
		return nil, err
	}
	if current.Status.Terminal() {
		err = appErrors.ErrRenewalFinalized
		return nil, err
	}

	if params.Status == models.RenewalStatusApproved {
		allocation, lockErr := lockAllocation(ctx, tx, current.AllocationID, params.HallID)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		if allocation.Status != models.AllocationStatusActive {
			err = appErrors.Clone(appErrors.ErrConflict, "allocation no longer active")
			return nil, err
		}
		months := 0
		if params.ExtensionMonths != nil {
			months = *params.ExtensionMonths
		}
		// Extension counts from the prior expiry, not from now.
		newExpiry := allocation.RenewalExpiresAt.AddDate(0, months, 0)
		const extendQuery = `UPDATE allocations SET renewal_expires_at = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, extendQuery, allocation.ID, newExpiry); err != nil {
			return nil, fmt.Errorf("extend allocation: %w", err)
		}
	}

	now := time.Now().UTC()
	const decideQuery = `UPDATE renewal_requests
        SET status = $2, reviewed_at = $3, reviewer_id = $4, review_note = $5, extension_months = $6
        WHERE id = $1`
	if _, err = tx.ExecContext(ctx, decideQuery, params.RequestID, params.Status, now, params.ReviewerID, params.Note, params.ExtensionMonths); err != nil {
		return nil, fmt.Errorf("record renewal decision: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	current.Status = params.Status
	current.ReviewedAt = &now
	current.ReviewerID = &params.ReviewerID
	current.ReviewNote = params.Note
	current.ExtensionMonths = params.ExtensionMonths
	return &current, nil
}
