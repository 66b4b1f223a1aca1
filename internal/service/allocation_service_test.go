package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

type eventsStub struct {
	events []models.NotificationEvent
}

func (s *eventsStub) Publish(event models.NotificationEvent) {
	s.events = append(s.events, event)
}

type metricsStub struct {
	outcomes []string
	depths   map[string]int
}

func (s *metricsStub) RecordAllocationOutcome(outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

func (s *metricsStub) SetWaitlistDepth(hallID string, depth int) {
	if s.depths == nil {
		s.depths = map[string]int{}
	}
	s.depths[hallID] = depth
}

type cacheStub struct {
	invalidated []string
}

func (s *cacheStub) Invalidate(_ context.Context, hallID string) {
	s.invalidated = append(s.invalidated, hallID)
}

type allocationRepoStub struct {
	assigned     *models.Allocation
	assignErr    error
	assignParams []repository.AssignParams
	transferred  *models.Allocation
	transferErr  error
	cancelled    *models.Allocation
	cancelErr    error
	cancelErrFor map[string]error
	cancelCalls  []string
	activeSeat   *models.Allocation
}

func (s *allocationRepoStub) Assign(_ context.Context, params repository.AssignParams) (*models.Allocation, error) {
	s.assignParams = append(s.assignParams, params)
	return s.assigned, s.assignErr
}

func (s *allocationRepoStub) Transfer(_ context.Context, allocationID, newRoomID, hallID string) (*models.Allocation, error) {
	return s.transferred, s.transferErr
}

func (s *allocationRepoStub) Cancel(_ context.Context, allocationID, hallID string, reason *string) (*models.Allocation, error) {
	s.cancelCalls = append(s.cancelCalls, allocationID)
	if err, ok := s.cancelErrFor[allocationID]; ok {
		return nil, err
	}
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	cancelled := *s.cancelled
	cancelled.ID = allocationID
	return &cancelled, nil
}

func (s *allocationRepoStub) List(_ context.Context, filter models.AllocationFilter) ([]models.AllocationDetail, int, error) {
	return nil, 0, nil
}

func (s *allocationRepoStub) FindByID(_ context.Context, id string) (*models.Allocation, error) {
	return nil, sql.ErrNoRows
}

func (s *allocationRepoStub) FindActiveByStudent(_ context.Context, studentID string) (*models.Allocation, error) {
	if s.activeSeat == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.activeSeat
	return &copied, nil
}

type interviewReaderStub struct {
	interviews map[string]*models.Interview
}

func (s interviewReaderStub) FindByApplication(_ context.Context, applicationID string) (*models.Interview, error) {
	if interview, ok := s.interviews[applicationID]; ok {
		copied := *interview
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func confirmedInterviews(applicationID string) interviewReaderStub {
	confirmed := time.Now().UTC()
	return interviewReaderStub{interviews: map[string]*models.Interview{
		applicationID: {
			ID:            "interview-1",
			ApplicationID: applicationID,
			HallID:        "hall-1",
			ConfirmedAt:   &confirmed,
		},
	}}
}

type applicationReaderStub struct {
	applications map[string]*models.Application
}

func (s applicationReaderStub) FindByID(_ context.Context, id string) (*models.Application, error) {
	if application, ok := s.applications[id]; ok {
		copied := *application
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleHallAdmin, HallID: "hall-1"}
}

func activeAllocation() *models.Allocation {
	return &models.Allocation{
		ID:               "alloc-1",
		StudentID:        "student-1",
		RoomID:           "room-1",
		HallID:           "hall-1",
		Status:           models.AllocationStatusActive,
		AllocatedAt:      time.Now().UTC(),
		RenewalExpiresAt: time.Now().UTC().AddDate(1, 0, 0),
	}
}

func TestAllocationServiceAssign(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	apps := applicationReaderStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", StudentID: "student-1", Status: models.ApplicationStatusScheduled},
	}}
	audit := &auditStub{}
	events := &eventsStub{}
	metrics := &metricsStub{}
	cache := &cacheStub{}
	svc := NewAllocationService(repo, apps, confirmedInterviews("app-1"), audit, events, metrics, cache, 12, nil, nil)

	allocation, err := svc.Assign(context.Background(), models.AssignAllocationRequest{
		ApplicationID: "app-1",
		RoomID:        "room-1",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "room-1", allocation.RoomID)

	require.Len(t, repo.assignParams, 1)
	require.NotNil(t, repo.assignParams[0].ApplicationID)
	assert.Equal(t, "app-1", *repo.assignParams[0].ApplicationID)
	assert.Nil(t, repo.assignParams[0].Reason)

	assert.Equal(t, []string{"assigned"}, metrics.outcomes)
	assert.Equal(t, []string{"hall-1"}, cache.invalidated)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionAssign, audit.logs[0].Action)
	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventAllocationAssigned, events.events[0].Type)
}

func TestAllocationServiceAssignWrongHall(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	apps := applicationReaderStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-2", StudentID: "student-1", Status: models.ApplicationStatusScheduled},
	}}
	svc := NewAllocationService(repo, apps, confirmedInterviews("app-1"), nil, nil, nil, nil, 12, nil, nil)

	_, err := svc.Assign(context.Background(), models.AssignAllocationRequest{
		ApplicationID: "app-1",
		RoomID:        "room-1",
	}, adminClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAllocationServiceAssignRoomFullCounted(t *testing.T) {
	repo := &allocationRepoStub{assignErr: appErrors.ErrRoomFull}
	apps := applicationReaderStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", StudentID: "student-1", Status: models.ApplicationStatusScheduled},
	}}
	metrics := &metricsStub{}
	svc := NewAllocationService(repo, apps, confirmedInterviews("app-1"), nil, nil, metrics, nil, 12, nil, nil)

	_, err := svc.Assign(context.Background(), models.AssignAllocationRequest{
		ApplicationID: "app-1",
		RoomID:        "room-1",
	}, adminClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRoomFull)
	assert.Equal(t, []string{"room_full"}, metrics.outcomes)
}

func TestAllocationServiceAssignWithoutInterviewConflicts(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	apps := applicationReaderStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", StudentID: "student-1", Status: models.ApplicationStatusPending},
	}}
	svc := NewAllocationService(repo, apps, interviewReaderStub{}, nil, nil, nil, nil, 12, nil, nil)

	_, err := svc.Assign(context.Background(), models.AssignAllocationRequest{
		ApplicationID: "app-1",
		RoomID:        "room-1",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.assignParams)
}

func TestAllocationServiceAssignUnconfirmedInterviewConflicts(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	apps := applicationReaderStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", StudentID: "student-1", Status: models.ApplicationStatusScheduled},
	}}
	interviews := interviewReaderStub{interviews: map[string]*models.Interview{
		"app-1": {ID: "interview-1", ApplicationID: "app-1", HallID: "hall-1"},
	}}
	svc := NewAllocationService(repo, apps, interviews, nil, nil, nil, nil, 12, nil, nil)

	_, err := svc.Assign(context.Background(), models.AssignAllocationRequest{
		ApplicationID: "app-1",
		RoomID:        "room-1",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.assignParams)
}

func TestAllocationServiceManualAssignRequiresReason(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, nil, nil, nil, nil, 12, nil, nil)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := svc.ManualAssign(context.Background(), models.ManualAssignRequest{
			StudentID: "student-1",
			RoomID:    "room-1",
			Reason:    reason,
		}, adminClaims())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, repo.assignParams)
}

func TestAllocationServiceManualAssignStoresReason(t *testing.T) {
	repo := &allocationRepoStub{assigned: activeAllocation()}
	audit := &auditStub{}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, audit, nil, nil, nil, 12, nil, nil)

	_, err := svc.ManualAssign(context.Background(), models.ManualAssignRequest{
		StudentID: "student-1",
		RoomID:    "room-1",
		Reason:    "medical accommodation",
	}, adminClaims())
	require.NoError(t, err)

	require.Len(t, repo.assignParams, 1)
	assert.Nil(t, repo.assignParams[0].ApplicationID)
	require.NotNil(t, repo.assignParams[0].Reason)
	assert.Equal(t, "medical accommodation", *repo.assignParams[0].Reason)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionManualAssign, audit.logs[0].Action)
}

func TestAllocationServiceBulkCancelRequiresReason(t *testing.T) {
	repo := &allocationRepoStub{cancelled: activeAllocation()}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, nil, nil, nil, nil, 12, nil, nil)

	for _, reason := range []string{"", "   "} {
		_, err := svc.BulkCancel(context.Background(), models.BulkCancelRequest{
			AllocationIDs: []string{"alloc-1"},
			Reason:        reason,
		}, adminClaims())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, repo.cancelCalls)
}

func TestAllocationServiceBulkCancelPartialFailure(t *testing.T) {
	cancelled := activeAllocation()
	cancelled.Status = models.AllocationStatusVacated
	repo := &allocationRepoStub{
		cancelled:    cancelled,
		cancelErrFor: map[string]error{"alloc-2": appErrors.Clone(appErrors.ErrConflict, "allocation already vacated")},
	}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, &auditStub{}, &eventsStub{}, &metricsStub{}, &cacheStub{}, 12, nil, nil)

	result, err := svc.BulkCancel(context.Background(), models.BulkCancelRequest{
		AllocationIDs: []string{"alloc-1", "alloc-2", "alloc-3"},
		Reason:        "semester end",
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"alloc-1", "alloc-3"}, result.Cancelled)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed["alloc-2"], "vacated")
}

func TestAllocationServiceCancelIdempotencyConflictSurfaces(t *testing.T) {
	repo := &allocationRepoStub{cancelErr: appErrors.Clone(appErrors.ErrConflict, "allocation already vacated")}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, nil, nil, nil, nil, 12, nil, nil)

	_, err := svc.Cancel(context.Background(), "alloc-1", models.CancelAllocationRequest{}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAllocationServiceSearchStudent(t *testing.T) {
	repo := &allocationRepoStub{activeSeat: activeAllocation()}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, &auditStub{}, &eventsStub{}, &metricsStub{}, &cacheStub{}, 12, nil, nil)

	result, err := svc.SearchStudent(context.Background(), "student-1", adminClaims())
	require.NoError(t, err)
	assert.True(t, result.Allocated)
	require.NotNil(t, result.Allocation)
	assert.Equal(t, "alloc-1", result.Allocation.ID)

	repo.activeSeat = nil
	result, err = svc.SearchStudent(context.Background(), "student-1", adminClaims())
	require.NoError(t, err)
	assert.False(t, result.Allocated)
	assert.Nil(t, result.Allocation)
}

func TestAllocationServiceSearchStudentOtherHallHidesSeat(t *testing.T) {
	seat := activeAllocation()
	seat.HallID = "hall-2"
	repo := &allocationRepoStub{activeSeat: seat}
	svc := NewAllocationService(repo, applicationReaderStub{}, interviewReaderStub{}, &auditStub{}, &eventsStub{}, &metricsStub{}, &cacheStub{}, 12, nil, nil)

	result, err := svc.SearchStudent(context.Background(), "student-1", adminClaims())
	require.NoError(t, err)
	assert.True(t, result.Allocated)
	assert.Nil(t, result.Allocation)
}
