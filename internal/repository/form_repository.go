package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hall-adp-api/internal/models"
)

const formColumns = `id, hall_id, title, session, fields, published, deadline, created_at, updated_at`

// FormRepository handles persistence of hall admission forms.
type FormRepository struct {
	db *sqlx.DB
}

// NewFormRepository constructs the repository.
func NewFormRepository(db *sqlx.DB) *FormRepository {
	return &FormRepository{db: db}
}

// List returns the hall's forms, newest first.
func (r *FormRepository) List(ctx context.Context, hallID string) ([]models.Form, error) {
	query := fmt.Sprintf("SELECT %s FROM forms WHERE hall_id = $1 ORDER BY created_at DESC", formColumns)
	var forms []models.Form
	if err := r.db.SelectContext(ctx, &forms, query, hallID); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// FindByID returns a form by its ID.
func (r *FormRepository) FindByID(ctx context.Context, id string) (*models.Form, error) {
	query := fmt.Sprintf("SELECT %s FROM forms WHERE id = $1", formColumns)
	var form models.Form
	if err := r.db.GetContext(ctx, &form, query, id); err != nil {
		return nil, err
	}
	return &form, nil
}
