package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const allocationResource = "allocation"

type allocationStore interface {
	Assign(ctx context.Context, params repository.AssignParams) (*models.Allocation, error)
	Transfer(ctx context.Context, allocationID, newRoomID, hallID string) (*models.Allocation, error)
	Cancel(ctx context.Context, allocationID, hallID string, reason *string) (*models.Allocation, error)
	List(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Allocation, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Allocation, error)
}

type allocationApplicationReader interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

type allocationInterviewReader interface {
	FindByApplication(ctx context.Context, applicationID string) (*models.Interview, error)
}

type allocationMetrics interface {
	RecordAllocationOutcome(outcome string)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, hallID string)
}

// AllocationService owns seat assignment, transfer and vacation. All
// capacity decisions happen inside the repository transaction; this
// layer validates intent, scopes by hall and fans out side effects.
type AllocationService struct {
	allocations    allocationStore
	applications   allocationApplicationReader
	interviews     allocationInterviewReader
	audit          auditLogger
	events         eventPublisher
	metrics        allocationMetrics
	cache          cacheInvalidator
	validityMonths int
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewAllocationService builds an AllocationService with sane defaults.
func NewAllocationService(
	allocations allocationStore,
	applications allocationApplicationReader,
	interviews allocationInterviewReader,
	audit auditLogger,
	events eventPublisher,
	metrics allocationMetrics,
	cache cacheInvalidator,
	validityMonths int,
	validate *validator.Validate,
	logger *zap.Logger,
) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if validityMonths <= 0 {
		validityMonths = 12
	}
	return &AllocationService{
		allocations:    allocations,
		applications:   applications,
		interviews:     interviews,
		audit:          audit,
		events:         events,
		metrics:        metrics,
		cache:          cache,
		validityMonths: validityMonths,
		validator:      validate,
		logger:         logger,
	}
}

// Assign seats a ranked candidate. The application must belong to the
// admin's hall and carry a confirmed interview; the room's capacity and
// eligibility are re-checked under lock inside the transaction.
func (s *AllocationService) Assign(ctx context.Context, req models.AssignAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
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
	if application.Status == models.ApplicationStatusRejected || application.Status == models.ApplicationStatusNotAlloted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already finalised")
	}

	interview, err := s.interviews.FindByApplication(ctx, application.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application has no interview")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interview")
	}
	if interview.ConfirmedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "interview score not confirmed")
	}

	applicationID := application.ID
	allocation, err := s.allocations.Assign(ctx, repository.AssignParams{
		ApplicationID:    &applicationID,
		StudentID:        application.StudentID,
		RoomID:           req.RoomID,
		HallID:           application.HallID,
		RenewalExpiresAt: time.Now().UTC().AddDate(0, s.validityMonths, 0),
	})
	if err != nil {
		return nil, s.assignFailure(err)
	}

	s.finishAssign(ctx, claims, allocation, models.AuditActionAssign, map[string]interface{}{
		"applicationId": application.ID,
		"roomId":        req.RoomID,
	})
	return allocation, nil
}

// ManualAssign seats a student outside the candidate pipeline. A
// non-blank reason is mandatory and is stored on the allocation itself.
func (s *AllocationService) ManualAssign(ctx context.Context, req models.ManualAssignRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual assign payload")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "manual assignment reason is required")
	}
	allocation, err := s.allocations.Assign(ctx, repository.AssignParams{
		StudentID:        req.StudentID,
		RoomID:           req.RoomID,
		HallID:           claims.HallID,
		Reason:           &reason,
		RenewalExpiresAt: time.Now().UTC().AddDate(0, s.validityMonths, 0),
	})
	if err != nil {
		return nil, s.assignFailure(err)
	}

	s.finishAssign(ctx, claims, allocation, models.AuditActionManualAssign, map[string]interface{}{
		"studentId": req.StudentID,
		"roomId":    req.RoomID,
		"reason":    reason,
	})
	return allocation, nil
}

// Transfer moves an active allocation to a new room atomically.
func (s *AllocationService) Transfer(ctx context.Context, allocationID string, req models.TransferAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	allocation, err := s.allocations.Transfer(ctx, allocationID, req.RoomID, claims.HallID)
	if err != nil {
		return nil, s.assignFailure(err)
	}

	s.recordOutcome("transferred")
	s.invalidate(ctx, allocation.HallID)
	s.emitAudit(ctx, claims, models.AuditActionTransfer, allocation.ID, map[string]interface{}{
		"roomId": req.RoomID,
	})
	s.publish(models.EventAllocationTransferred, allocation)
	return allocation, nil
}

// Cancel vacates one allocation. The reason is optional here; bulk
// cancellation requires one.
func (s *AllocationService) Cancel(ctx context.Context, allocationID string, req models.CancelAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	allocation, err := s.allocations.Cancel(ctx, allocationID, claims.HallID, req.Reason)
	if err != nil {
		return nil, s.assignFailure(err)
	}

	s.recordOutcome("cancelled")
	s.invalidate(ctx, allocation.HallID)
	payload := map[string]interface{}{}
	if req.Reason != nil {
		payload["reason"] = *req.Reason
	}
	s.emitAudit(ctx, claims, models.AuditActionVacate, allocation.ID, payload)
	s.publish(models.EventAllocationVacated, allocation)
	return allocation, nil
}

// BulkCancel vacates several allocations with one shared, mandatory
// reason. Failures do not stop the batch; each allocation reports its
// own outcome.
func (s *AllocationService) BulkCancel(ctx context.Context, req models.BulkCancelRequest, claims *models.JWTClaims) (*models.BulkCancelResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk cancel payload")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason is required")
	}
	result := &models.BulkCancelResult{Cancelled: []string{}}
	for _, id := range req.AllocationIDs {
		allocation, err := s.allocations.Cancel(ctx, id, claims.HallID, &reason)
		if err != nil {
			if result.Failed == nil {
				result.Failed = map[string]string{}
			}
			result.Failed[id] = appErrors.FromError(err).Message
			continue
		}
		result.Cancelled = append(result.Cancelled, id)
		s.recordOutcome("cancelled")
		s.emitAudit(ctx, claims, models.AuditActionVacate, allocation.ID, map[string]interface{}{
			"reason": reason,
			"bulk":   true,
		})
		s.publish(models.EventAllocationVacated, allocation)
	}
	if len(result.Cancelled) > 0 {
		s.invalidate(ctx, claims.HallID)
	}
	return result, nil
}

// List returns allocation details for the admin's hall.
func (s *AllocationService) List(ctx context.Context, filter models.AllocationFilter, claims *models.JWTClaims) ([]models.AllocationDetail, int, error) {
	if claims == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter.HallID = claims.HallID
	allocations, total, err := s.allocations.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list allocations")
	}
	return allocations, total, nil
}

// Get returns one allocation, hall scoped.
func (s *AllocationService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Allocation, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	allocation, err := s.allocations.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	if claims.HallID != "" && allocation.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	return allocation, nil
}

// SearchStudent backs the manual-assign flow: it reports whether the
// student already holds an ACTIVE seat anywhere.
func (s *AllocationService) SearchStudent(ctx context.Context, studentID string, claims *models.JWTClaims) (*models.StudentSearchResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	result := &models.StudentSearchResult{StudentID: studentID}
	allocation, err := s.allocations.FindActiveByStudent(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search student")
	}
	result.Allocated = true
	if claims.HallID == "" || allocation.HallID == claims.HallID {
		result.Allocation = allocation
	}
	return result, nil
}

// assignFailure maps repository errors to API errors and counts the
// capacity outcomes.
func (s *AllocationService) assignFailure(err error) error {
	switch {
	case errors.Is(err, appErrors.ErrRoomFull):
		s.recordOutcome("room_full")
	case errors.Is(err, appErrors.ErrRoomNotEligible):
		s.recordOutcome("not_eligible")
	case errors.Is(err, appErrors.ErrAlreadyAllocated):
		s.recordOutcome("conflict")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "allocation failed")
}

func (s *AllocationService) finishAssign(ctx context.Context, claims *models.JWTClaims, allocation *models.Allocation, action string, payload map[string]interface{}) {
	s.recordOutcome("assigned")
	s.invalidate(ctx, allocation.HallID)
	s.emitAudit(ctx, claims, action, allocation.ID, payload)
	s.publish(models.EventAllocationAssigned, allocation)
}

func (s *AllocationService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAllocationOutcome(outcome)
	}
}

func (s *AllocationService) invalidate(ctx context.Context, hallID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, hallID)
	}
}

func (s *AllocationService) publish(eventType models.NotificationEventType, allocation *models.Allocation) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.NotificationEvent{
		Type:       eventType,
		HallID:     allocation.HallID,
		StudentID:  allocation.StudentID,
		ResourceID: allocation.ID,
		Detail: map[string]interface{}{
			"room_id": allocation.RoomID,
			"status":  allocation.Status,
		},
	})
}

func (s *AllocationService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	newValues, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   allocationResource,
		ResourceID: &resourceID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "allocation-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record allocation audit", zap.Error(err))
	}
}
