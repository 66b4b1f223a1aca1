package service

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type scoreApplicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateScore(ctx context.Context, id string, score float64) error
}

type scoreFormReader interface {
	FindByID(ctx context.Context, id string) (*models.Form, error)
}

// ScoreService computes application scores from the form schema. Scoring
// is deterministic: the same form and answers always produce the same
// score, regardless of evaluation order.
type ScoreService struct {
	applications scoreApplicationStore
	forms        scoreFormReader
	logger       *zap.Logger
}

// NewScoreService builds a ScoreService.
func NewScoreService(applications scoreApplicationStore, forms scoreFormReader, logger *zap.Logger) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{applications: applications, forms: forms, logger: logger}
}

// ComputeScore sums the weights of every scored field the applicant
// actually answered. Unscored fields and unanswered scored fields
// contribute nothing; a weight is added in full or not at all.
func ComputeScore(fields models.FormFields, answers models.Answers) float64 {
	var total float64
	for _, field := range fields {
		if field.Score <= 0 {
			continue
		}
		value, ok := answers[field.ID]
		if !ok {
			continue
		}
		if answered(value) {
			total += field.Score
		}
	}
	return total
}

// answered reports whether a raw answer value counts as a response.
// Blank strings and empty arrays do not; any present number does, and
// booleans count only when true.
func answered(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		// Numbers and any other concrete value count by presence.
		return true
	}
}

// Recompute reloads the application's form schema, recomputes the score
// and persists it. Returns the updated application.
func (s *ScoreService) Recompute(ctx context.Context, applicationID string, claims *models.JWTClaims) (*models.Application, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if claims.HallID != "" && application.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}

	form, err := s.forms.FindByID(ctx, application.FormID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}

	score := ComputeScore(form.Fields, application.Answers)
	if err := s.applications.UpdateScore(ctx, application.ID, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store score")
	}

	s.logger.Debug("application score recomputed",
		zap.String("application_id", application.ID),
		zap.Float64("score", score))

	application.ApplicationScore = score
	return application, nil
}
