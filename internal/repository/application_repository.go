package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
)

const applicationColumns = `id, form_id, hall_id, student_id, student_name, department, session, program_level, answers, application_score, status, created_at`

// ApplicationRepository handles persistence of applications and the
// derived candidate projection.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	base := "FROM applications"
	var conditions []string
	var args []interface{}

	if filter.FormID != "" {
		conditions = append(conditions, fmt.Sprintf("form_id = $%d", len(args)+1))
		args = append(args, filter.FormID)
	}
	if filter.HallID != "" {
		conditions = append(conditions, fmt.Sprintf("hall_id = $%d", len(args)+1))
		args = append(args, filter.HallID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Session != "" {
		conditions = append(conditions, fmt.Sprintf("session = $%d", len(args)+1))
		args = append(args, filter.Session)
	}
	if filter.ProgramLevel != "" {
		conditions = append(conditions, fmt.Sprintf("program_level = $%d", len(args)+1))
		args = append(args, filter.ProgramLevel)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC LIMIT %d OFFSET %d",
		applicationColumns, base+clause, size, offset)

	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1", applicationColumns)
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// ListByStudent returns all applications a student has submitted.
func (r *ApplicationRepository) ListByStudent(ctx context.Context, hallID, studentID string) ([]models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE hall_id = $1 AND student_id = $2 ORDER BY created_at DESC",
		applicationColumns)
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, hallID, studentID); err != nil {
		return nil, fmt.Errorf("list student applications: %w", err)
	}
	return applications, nil
}

// UpdateStatus sets the application status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// UpdateScore stores the recomputed application score.
func (r *ApplicationRepository) UpdateScore(ctx context.Context, id string, score float64) error {
	const query = `UPDATE applications SET application_score = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score); err != nil {
		return fmt.Errorf("update application score: %w", err)
	}
	return nil
}

// ListCandidates projects applications with a confirmed interview into
// the derived candidate view. Never persisted; recomputed per call.
func (r *ApplicationRepository) ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.Candidate, error) {
	base := `SELECT a.id AS application_id, a.student_id, a.student_name, a.department, a.session, a.program_level,
        a.application_score, i.score AS interview_score, a.application_score + i.score AS total_score,
        a.created_at AS submitted_at
        FROM applications a
        JOIN interviews i ON i.application_id = a.id
        WHERE i.confirmed_at IS NOT NULL
          AND a.status NOT IN ('Rejected', 'Alloted', 'NotAlloted')`
	var conditions []string
	args := []interface{}{}

	if filter.HallID != "" {
		conditions = append(conditions, fmt.Sprintf("a.hall_id = $%d", len(args)+1))
		args = append(args, filter.HallID)
	}
	if filter.ProgramLevel != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_level = $%d", len(args)+1))
		args = append(args, filter.ProgramLevel)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("a.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Session != "" {
		conditions = append(conditions, fmt.Sprintf("a.session = $%d", len(args)+1))
		args = append(args, filter.Session)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY total_score DESC, submitted_at ASC, application_id ASC"

	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return candidates, nil
}
