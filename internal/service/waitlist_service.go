package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const waitlistResource = "waitlist"

type waitlistStore interface {
	Add(ctx context.Context, applicationID, hallID, studentID string, scoreSnapshot float64) (*models.WaitlistEntry, error)
	List(ctx context.Context, hallID string) ([]models.WaitlistEntryDetail, error)
	FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	BulkRemove(ctx context.Context, hallID string, entryIDs []string) (int64, error)
}

type seatAssigner interface {
	Assign(ctx context.Context, req models.AssignAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error)
}

type waitlistMetrics interface {
	SetWaitlistDepth(hallID string, depth int)
}

// WaitlistService manages the hall waitlist. Order is insertion order by
// monotonic position; promotion is an explicit admin action that rides
// the normal assignment path, so every capacity check still applies.
type WaitlistService struct {
	waitlist     waitlistStore
	applications allocationApplicationReader
	candidates   candidateReader
	assigner     seatAssigner
	audit        auditLogger
	events       eventPublisher
	metrics      waitlistMetrics
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewWaitlistService builds a WaitlistService with sane defaults.
func NewWaitlistService(
	waitlist waitlistStore,
	applications allocationApplicationReader,
	candidates candidateReader,
	assigner seatAssigner,
	audit auditLogger,
	events eventPublisher,
	metrics waitlistMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		waitlist:     waitlist,
		applications: applications,
		candidates:   candidates,
		assigner:     assigner,
		audit:        audit,
		events:       events,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// Add places an application on the hall waitlist, snapshotting its total
// score at entry time. Applications already seated or already listed are
// conflicts.
func (s *WaitlistService) Add(ctx context.Context, req models.AddWaitlistRequest, claims *models.JWTClaims) (*models.WaitlistEntry, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}

	application, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if claims.HallID != "" && application.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	if application.Status == models.ApplicationStatusAlloted {
		return nil, appErrors.ErrAlreadyAllocated
	}

	snapshot := s.totalScore(ctx, application)
	entry, err := s.waitlist.Add(ctx, application.ID, application.HallID, application.StudentID, snapshot)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add waitlist entry")
	}

	s.emitAudit(ctx, claims, models.AuditActionWaitlistAdd, entry.ID, map[string]interface{}{
		"applicationId": application.ID,
		"position":      entry.Position,
	})
	if s.events != nil {
		s.events.Publish(models.NotificationEvent{
			Type:       models.EventWaitlisted,
			HallID:     entry.HallID,
			StudentID:  application.StudentID,
			ResourceID: entry.ID,
			Detail:     map[string]interface{}{"position": entry.Position},
		})
	}
	s.refreshDepth(ctx, entry.HallID)
	return entry, nil
}

// List returns the hall waitlist in position order.
func (s *WaitlistService) List(ctx context.Context, claims *models.JWTClaims) ([]models.WaitlistEntryDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	entries, err := s.waitlist.List(ctx, claims.HallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	if s.metrics != nil {
		s.metrics.SetWaitlistDepth(claims.HallID, len(entries))
	}
	return entries, nil
}

// Promote seats a waitlisted candidate in the chosen room through the
// normal assignment path. Success removes the entry inside the same
// transaction; the freed position is never reassigned.
func (s *WaitlistService) Promote(ctx context.Context, entryID string, req models.PromoteWaitlistRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}

	entry, err := s.waitlist.FindByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if claims.HallID != "" && entry.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}

	allocation, err := s.assigner.Assign(ctx, models.AssignAllocationRequest{
		ApplicationID: entry.ApplicationID,
		RoomID:        req.RoomID,
	}, claims)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, claims, models.AuditActionWaitlistPromote, entry.ID, map[string]interface{}{
		"applicationId": entry.ApplicationID,
		"roomId":        req.RoomID,
		"position":      entry.Position,
	})
	s.refreshDepth(ctx, entry.HallID)
	return allocation, nil
}

// BulkRemove drops entries from the waitlist without touching rooms or
// allocations.
func (s *WaitlistService) BulkRemove(ctx context.Context, req models.BulkRemoveWaitlistRequest, claims *models.JWTClaims) (int64, error) {
	if claims == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk remove payload")
	}

	removed, err := s.waitlist.BulkRemove(ctx, claims.HallID, req.EntryIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove waitlist entries")
	}

	s.emitAudit(ctx, claims, models.AuditActionWaitlistRemove, "", map[string]interface{}{
		"entryIds": req.EntryIDs,
		"removed":  removed,
	})
	s.refreshDepth(ctx, claims.HallID)
	return removed, nil
}

// totalScore resolves the candidate's total score at entry time, falling
// back to the application score when no confirmed interview exists.
func (s *WaitlistService) totalScore(ctx context.Context, application *models.Application) float64 {
	if s.candidates == nil {
		return application.ApplicationScore
	}
	pool, err := s.candidates.ListCandidates(ctx, models.CandidateFilter{HallID: application.HallID})
	if err != nil {
		s.logger.Warn("falling back to application score for waitlist snapshot", zap.Error(err))
		return application.ApplicationScore
	}
	for _, candidate := range pool {
		if candidate.ApplicationID == application.ID {
			return candidate.TotalScore
		}
	}
	return application.ApplicationScore
}

func (s *WaitlistService) refreshDepth(ctx context.Context, hallID string) {
	if s.metrics == nil {
		return
	}
	entries, err := s.waitlist.List(ctx, hallID)
	if err != nil {
		return
	}
	s.metrics.SetWaitlistDepth(hallID, len(entries))
}

func (s *WaitlistService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:    &actor.UserID,
		Action:    action,
		Resource:  waitlistResource,
		NewValues: newValues,
		IPAddress: "system",
		UserAgent: "waitlist-service",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record waitlist audit", zap.Error(err))
	}
}
