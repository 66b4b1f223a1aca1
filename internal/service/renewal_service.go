package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

const renewalResource = "renewal"

type renewalStore interface {
	Create(ctx context.Context, request *models.RenewalRequest) error
	List(ctx context.Context, filter models.RenewalFilter) ([]models.RenewalRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.RenewalRequest, error)
	ExistsOpenForAllocation(ctx context.Context, allocationID string) (bool, error)
	Decide(ctx context.Context, params repository.DecideParams) (*models.RenewalRequest, error)
}

type activeAllocationReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Allocation, error)
}

// RenewalService runs the allocation renewal lifecycle. Students may
// only submit inside the pre-expiry window; decisions are one-way and
// approval extends validity from the prior expiry date.
type RenewalService struct {
	renewals      renewalStore
	allocations   activeAllocationReader
	audit         auditLogger
	events        eventPublisher
	windowMonths  int
	maxExtension  int
	defaultMonths int
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewRenewalService builds a RenewalService with sane defaults.
func NewRenewalService(
	renewals renewalStore,
	allocations activeAllocationReader,
	audit auditLogger,
	events eventPublisher,
	windowMonths, maxExtension, defaultMonths int,
	validate *validator.Validate,
	logger *zap.Logger,
) *RenewalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowMonths <= 0 {
		windowMonths = 3
	}
	if maxExtension <= 0 {
		maxExtension = 12
	}
	if defaultMonths <= 0 || defaultMonths > maxExtension {
		defaultMonths = maxExtension
	}
	return &RenewalService{
		renewals:      renewals,
		allocations:   allocations,
		audit:         audit,
		events:        events,
		windowMonths:  windowMonths,
		maxExtension:  maxExtension,
		defaultMonths: defaultMonths,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Eligibility reports whether the student may submit a renewal now and,
// if not, why.
func (s *RenewalService) Eligibility(ctx context.Context, claims *models.JWTClaims) (*models.RenewalEligibility, error) {
	if claims == nil || claims.StudentID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	allocation, err := s.allocations.FindActiveByStudent(ctx, claims.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.RenewalEligibility{Eligible: false, Reason: "no active allocation"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}

	opens := allocation.RenewalExpiresAt.AddDate(0, -s.windowMonths, 0)
	expires := allocation.RenewalExpiresAt
	eligibility := &models.RenewalEligibility{
		AllocationID: allocation.ID,
		WindowOpens:  &opens,
		ExpiresAt:    &expires,
	}

	if s.now().Before(opens) {
		eligibility.Reason = "renewal window not yet open"
		return eligibility, nil
	}

	open, err := s.renewals.ExistsOpenForAllocation(ctx, allocation.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending renewals")
	}
	if open {
		eligibility.Reason = "a renewal request is already under review"
		return eligibility, nil
	}

	eligibility.Eligible = true
	return eligibility, nil
}

// Submit files a renewal request for the student's active allocation.
// The window opens a fixed number of months before expiry; earlier
// submissions are refused, and a proof attachment is mandatory.
func (s *RenewalService) Submit(ctx context.Context, req models.SubmitRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	if claims == nil || claims.StudentID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.ProofAttachment) == "" {
		return nil, appErrors.ErrProofRequired
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renewal payload")
	}

	allocation, err := s.allocations.FindActiveByStudent(ctx, claims.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active allocation")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}

	opens := allocation.RenewalExpiresAt.AddDate(0, -s.windowMonths, 0)
	if s.now().Before(opens) {
		return nil, appErrors.ErrWindowClosed
	}

	open, err := s.renewals.ExistsOpenForAllocation(ctx, allocation.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending renewals")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a renewal request is already under review")
	}

	request := &models.RenewalRequest{
		AllocationID:    allocation.ID,
		HallID:          allocation.HallID,
		StudentID:       claims.StudentID,
		AcademicYear:    req.AcademicYear,
		Remarks:         req.Remarks,
		ProofAttachment: req.ProofAttachment,
		Status:          models.RenewalStatusPending,
	}
	if err := s.renewals.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create renewal request")
	}
	return request, nil
}

// Decide records an admin decision. Approval extends the allocation's
// validity from its prior expiry; the granted months may not exceed the
// configured maximum. Decided requests are immutable.
func (s *RenewalService) Decide(ctx context.Context, requestID string, req models.DecideRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	params := repository.DecideParams{
		RequestID:  requestID,
		HallID:     claims.HallID,
		Status:     req.Status,
		ReviewerID: claims.UserID,
		Note:       req.Note,
	}
	if req.Status == models.RenewalStatusApproved {
		months := s.defaultMonths
		if req.ExtensionMonths != nil {
			months = *req.ExtensionMonths
		}
		if months <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "extension months must be positive")
		}
		if months > s.maxExtension {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension months may not exceed %d", s.maxExtension))
		}
		params.ExtensionMonths = &months
	}

	request, err := s.renewals.Decide(ctx, params)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide renewal")
	}

	s.emitAudit(ctx, claims, request, req)
	if s.events != nil && request.Status.Terminal() {
		s.events.Publish(models.NotificationEvent{
			Type:       models.EventRenewalDecided,
			HallID:     request.HallID,
			StudentID:  request.StudentID,
			ResourceID: request.ID,
			Detail:     map[string]interface{}{"status": request.Status},
		})
	}
	return request, nil
}

// Get returns one renewal request. Admins see their hall; students see
// only their own.
func (s *RenewalService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.renewals.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "renewal request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load renewal request")
	}
	if claims.Role == models.RoleStudent {
		if request.StudentID != claims.StudentID {
			return nil, appErrors.ErrForbidden
		}
		return request, nil
	}
	if claims.HallID != "" && request.HallID != claims.HallID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns renewal requests. Admins see their hall; students see
// only their own.
func (s *RenewalService) List(ctx context.Context, filter models.RenewalFilter, claims *models.JWTClaims) ([]models.RenewalRequest, int, error) {
	if claims == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID == "" {
			return nil, 0, appErrors.ErrForbidden
		}
		filter.StudentID = claims.StudentID
		filter.HallID = ""
	} else {
		filter.HallID = claims.HallID
	}
	requests, total, err := s.renewals.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list renewals")
	}
	return requests, total, nil
}

func (s *RenewalService) emitAudit(ctx context.Context, actor *models.JWTClaims, request *models.RenewalRequest, req models.DecideRenewalRequest) {
	if s.audit == nil {
		return
	}
	payload := map[string]interface{}{
		"status": req.Status,
	}
	if req.ExtensionMonths != nil {
		payload["extensionMonths"] = *req.ExtensionMonths
	}
	newValues, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRenewalDecision,
		Resource:   renewalResource,
		ResourceID: &request.ID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "renewal-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record renewal audit", zap.Error(err))
	}
}
