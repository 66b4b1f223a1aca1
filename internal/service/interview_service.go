package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const interviewResource = "interview"

type interviewStore interface {
	ScheduleBatch(ctx context.Context, params repository.ScheduleBatchParams) ([]models.Interview, error)
	FindByID(ctx context.Context, id string) (*models.Interview, error)
	List(ctx context.Context, filter models.InterviewFilter) ([]models.InterviewDetail, error)
	ConfirmScore(ctx context.Context, id string, score float64) (*models.Interview, error)
}

type interviewApplicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

// InterviewService runs the interview leg of the pipeline: batch
// scheduling, score confirmation and rejection.
type InterviewService struct {
	interviews   interviewStore
	applications interviewApplicationStore
	audit        auditLogger
	events       eventPublisher
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewInterviewService builds an InterviewService with sane defaults.
func NewInterviewService(
	interviews interviewStore,
	applications interviewApplicationStore,
	audit auditLogger,
	events eventPublisher,
	validate *validator.Validate,
	logger *zap.Logger,
) *InterviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewService{
		interviews:   interviews,
		applications: applications,
		audit:        audit,
		events:       events,
		validator:    validate,
		logger:       logger,
	}
}

// Schedule creates interview slots for a batch of applications. The whole
// batch succeeds or fails together; any application already finalised
// aborts it. Re-scheduling an application replaces its slot and clears
// any unconfirmed score.
func (s *InterviewService) Schedule(ctx context.Context, req models.ScheduleInterviewsRequest, claims *models.JWTClaims) ([]models.Interview, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	interviews, err := s.interviews.ScheduleBatch(ctx, repository.ScheduleBatchParams{
		ApplicationIDs: req.ApplicationIDs,
		HallID:         claims.HallID,
		Date:           req.Date,
		Time:           req.Time,
		Venue:          req.Venue,
	})
	if err != nil {
		if appErr, ok := err.(*appErrors.Error); ok {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule interviews")
	}

	s.emitAudit(ctx, claims, models.AuditActionInterviewSchedule, "", map[string]interface{}{
		"applicationIds": req.ApplicationIDs,
		"date":           req.Date,
		"time":           req.Time,
		"venue":          req.Venue,
	})
	if s.events != nil {
		for _, interview := range interviews {
			s.events.Publish(models.NotificationEvent{
				Type:       models.EventInterviewScheduled,
				HallID:     interview.HallID,
				ResourceID: interview.ID,
				Detail: map[string]interface{}{
					"application_id": interview.ApplicationID,
					"date":           interview.Date,
					"time":           interview.Time,
					"venue":          interview.Venue,
				},
			})
		}
	}
	return interviews, nil
}

// ListQueue returns the hall's interviews; with awaitingOnly set it is
// the working set still waiting on a confirmed score.
func (s *InterviewService) ListQueue(ctx context.Context, filter models.InterviewFilter, claims *models.JWTClaims) ([]models.InterviewDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter.HallID = claims.HallID
	interviews, err := s.interviews.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interviews")
	}
	return interviews, nil
}

// ConfirmScore records the interview outcome. Confirmation is one-way;
// re-scoring a confirmed interview is a conflict. The score must be a
// finite, non-negative number.
func (s *InterviewService) ConfirmScore(ctx context.Context, interviewID string, req models.ConfirmInterviewScoreRequest, claims *models.JWTClaims) (*models.Interview, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if math.IsNaN(req.Score) || math.IsInf(req.Score, 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be a finite number")
	}

	current, err := s.interviews.FindByID(ctx, interviewID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interview not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview")
	}
	if claims.HallID != "" && current.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}

	interview, err := s.interviews.ConfirmScore(ctx, interviewID, req.Score)
	if err != nil {
		if appErr, ok := err.(*appErrors.Error); ok {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm score")
	}

	s.emitAudit(ctx, claims, models.AuditActionInterviewScore, interview.ID, map[string]interface{}{
		"applicationId": interview.ApplicationID,
		"score":         req.Score,
	})
	return interview, nil
}

// Reject finalises an application as Rejected. Idempotent: rejecting an
// already rejected application succeeds without change. Applications
// already seated cannot be rejected.
func (s *InterviewService) Reject(ctx context.Context, applicationID string, claims *models.JWTClaims) (*models.Application, error) {
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

	if application.Status == models.ApplicationStatusRejected {
		return application, nil
	}
	if application.Status == models.ApplicationStatusAlloted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already seated")
	}

	if err := s.applications.UpdateStatus(ctx, applicationID, models.ApplicationStatusRejected); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
	}

	s.emitAudit(ctx, claims, models.AuditActionStatusChange, applicationID, map[string]interface{}{
		"from": application.Status,
		"to":   models.ApplicationStatusRejected,
	})
	application.Status = models.ApplicationStatusRejected
	return application, nil
}

func (s *InterviewService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:    &actor.UserID,
		Action:    action,
		Resource:  interviewResource,
		NewValues: newValues,
		IPAddress: "system",
		UserAgent: "interview-service",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record interview audit", zap.Error(err))
	}
}
