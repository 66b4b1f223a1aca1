package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const applicationResource = "application"

type applicationStore interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListByStudent(ctx context.Context, hallID, studentID string) ([]models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

// ApplicationService serves application listings and manual status
// moves. Status strings from older clients are normalised once here;
// everything downstream sees only the canonical enum.
type ApplicationService struct {
	applications applicationStore
	audit        auditLogger
	logger       *zap.Logger
}

// NewApplicationService builds an ApplicationService.
func NewApplicationService(applications applicationStore, audit auditLogger, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{applications: applications, audit: audit, logger: logger}
}

// List returns applications in the admin's hall. A legacy status filter
// value is normalised before it reaches the query.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter, rawStatus string, claims *models.JWTClaims) ([]models.Application, int, error) {
	if claims == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter.HallID = claims.HallID
	if rawStatus != "" {
		status, ok := models.NormalizeStatus(rawStatus)
		if !ok {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
		}
		filter.Status = status
	}
	applications, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return applications, total, nil
}

// Get returns one application, hall scoped.
func (s *ApplicationService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	application, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if claims.HallID != "" && application.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	return application, nil
}

// ListOwn returns the calling student's applications.
func (s *ApplicationService) ListOwn(ctx context.Context, claims *models.JWTClaims) ([]models.Application, error) {
	if claims == nil || claims.StudentID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	applications, err := s.applications.ListByStudent(ctx, claims.HallID, claims.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return applications, nil
}

// UpdateStatus moves an application to the given status. Legacy aliases
// are accepted; moves out of a terminal status are conflicts, except
// that re-applying the same terminal status is a no-op.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id, rawStatus string, claims *models.JWTClaims) (*models.Application, error) {
	status, ok := models.NormalizeStatus(rawStatus)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}

	application, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if application.Status == status {
		return application, nil
	}
	if application.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already finalised")
	}

	if err := s.applications.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.emitAudit(ctx, claims, id, application.Status, status)
	application.Status = status
	return application, nil
}

func (s *ApplicationService) emitAudit(ctx context.Context, actor *models.JWTClaims, id string, from, to models.ApplicationStatus) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"status": from})
	newValues, _ := json.Marshal(map[string]interface{}{"status": to})
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionStatusChange,
		Resource:   applicationResource,
		ResourceID: &id,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "application-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record application audit", zap.Error(err))
	}
}
