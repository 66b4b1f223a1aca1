package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type formStore interface {
	List(ctx context.Context, hallID string) ([]models.Form, error)
	FindByID(ctx context.Context, id string) (*models.Form, error)
}

// FormService serves the hall's admission forms.
type FormService struct {
	forms  formStore
	logger *zap.Logger
}

// NewFormService builds a FormService.
func NewFormService(forms formStore, logger *zap.Logger) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{forms: forms, logger: logger}
}

// List returns the hall's forms.
func (s *FormService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Form, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	forms, err := s.forms.List(ctx, claims.HallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list forms")
	}
	return forms, nil
}

// Get returns one form, hall scoped for admins. Students may read any
// published form.
func (s *FormService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Form, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	form, err := s.forms.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}
	if claims.Role == models.RoleStudent {
		if !form.Published {
			return nil, appErrors.ErrForbidden
		}
		return form, nil
	}
	if claims.HallID != "" && form.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	return form, nil
}
