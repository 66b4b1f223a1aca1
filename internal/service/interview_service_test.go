package service

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type interviewRepoStub struct {
	scheduled     []models.Interview
	scheduleErr   error
	scheduleCalls []repository.ScheduleBatchParams
	interviews    map[string]*models.Interview
	confirmed     *models.Interview
	confirmErr    error
	confirmCalls  []float64
}

func (s *interviewRepoStub) ScheduleBatch(_ context.Context, params repository.ScheduleBatchParams) ([]models.Interview, error) {
	s.scheduleCalls = append(s.scheduleCalls, params)
	return s.scheduled, s.scheduleErr
}

func (s *interviewRepoStub) FindByID(_ context.Context, id string) (*models.Interview, error) {
	if interview, ok := s.interviews[id]; ok {
		copied := *interview
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *interviewRepoStub) List(_ context.Context, filter models.InterviewFilter) ([]models.InterviewDetail, error) {
	return nil, nil
}

func (s *interviewRepoStub) ConfirmScore(_ context.Context, id string, score float64) (*models.Interview, error) {
	s.confirmCalls = append(s.confirmCalls, score)
	return s.confirmed, s.confirmErr
}

type interviewAppStub struct {
	applications  map[string]*models.Application
	statusUpdates []models.ApplicationStatus
	updateErr     error
}

func (s *interviewAppStub) FindByID(_ context.Context, id string) (*models.Application, error) {
	if application, ok := s.applications[id]; ok {
		copied := *application
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *interviewAppStub) UpdateStatus(_ context.Context, id string, status models.ApplicationStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func TestInterviewServiceSchedule(t *testing.T) {
	repo := &interviewRepoStub{scheduled: []models.Interview{
		{ID: "int-1", ApplicationID: "app-1", HallID: "hall-1"},
		{ID: "int-2", ApplicationID: "app-2", HallID: "hall-1"},
	}}
	audit := &auditStub{}
	events := &eventsStub{}
	svc := NewInterviewService(repo, &interviewAppStub{}, audit, events, nil, nil)

	interviews, err := svc.Schedule(context.Background(), models.ScheduleInterviewsRequest{
		ApplicationIDs: []string{"app-1", "app-2"},
		Date:           "2026-09-15",
		Time:           "10:00",
		Venue:          "Provost office",
	}, adminClaims())
	require.NoError(t, err)
	assert.Len(t, interviews, 2)

	require.Len(t, repo.scheduleCalls, 1)
	assert.Equal(t, "hall-1", repo.scheduleCalls[0].HallID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionInterviewSchedule, audit.logs[0].Action)
	require.Len(t, events.events, 2)
	assert.Equal(t, models.EventInterviewScheduled, events.events[0].Type)
}

func TestInterviewServiceScheduleEmptyBatch(t *testing.T) {
	repo := &interviewRepoStub{}
	svc := NewInterviewService(repo, &interviewAppStub{}, nil, nil, nil, nil)

	_, err := svc.Schedule(context.Background(), models.ScheduleInterviewsRequest{
		ApplicationIDs: []string{},
		Date:           "2026-09-15",
		Time:           "10:00",
		Venue:          "Provost office",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.scheduleCalls)
}

func TestInterviewServiceScheduleBatchConflictSurfaces(t *testing.T) {
	repo := &interviewRepoStub{scheduleErr: appErrors.Clone(appErrors.ErrConflict, "application app-2 already finalised")}
	svc := NewInterviewService(repo, &interviewAppStub{}, nil, nil, nil, nil)

	_, err := svc.Schedule(context.Background(), models.ScheduleInterviewsRequest{
		ApplicationIDs: []string{"app-1", "app-2"},
		Date:           "2026-09-15",
		Time:           "10:00",
		Venue:          "Provost office",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInterviewServiceConfirmScore(t *testing.T) {
	repo := &interviewRepoStub{
		interviews: map[string]*models.Interview{
			"int-1": {ID: "int-1", ApplicationID: "app-1", HallID: "hall-1"},
		},
		confirmed: &models.Interview{ID: "int-1", ApplicationID: "app-1", HallID: "hall-1"},
	}
	audit := &auditStub{}
	svc := NewInterviewService(repo, &interviewAppStub{}, audit, nil, nil, nil)

	_, err := svc.ConfirmScore(context.Background(), "int-1", models.ConfirmInterviewScoreRequest{Score: 17.5}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []float64{17.5}, repo.confirmCalls)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionInterviewScore, audit.logs[0].Action)
}

func TestInterviewServiceConfirmScoreRejectsNaN(t *testing.T) {
	repo := &interviewRepoStub{}
	svc := NewInterviewService(repo, &interviewAppStub{}, nil, nil, nil, nil)

	_, err := svc.ConfirmScore(context.Background(), "int-1", models.ConfirmInterviewScoreRequest{Score: math.NaN()}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.confirmCalls)
}

func TestInterviewServiceConfirmScoreWrongHall(t *testing.T) {
	repo := &interviewRepoStub{interviews: map[string]*models.Interview{
		"int-1": {ID: "int-1", HallID: "hall-2"},
	}}
	svc := NewInterviewService(repo, &interviewAppStub{}, nil, nil, nil, nil)

	_, err := svc.ConfirmScore(context.Background(), "int-1", models.ConfirmInterviewScoreRequest{Score: 10}, adminClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestInterviewServiceRejectIsIdempotent(t *testing.T) {
	apps := &interviewAppStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", Status: models.ApplicationStatusRejected},
	}}
	svc := NewInterviewService(&interviewRepoStub{}, apps, &auditStub{}, nil, nil, nil)

	application, err := svc.Reject(context.Background(), "app-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, application.Status)
	assert.Empty(t, apps.statusUpdates)
}

func TestInterviewServiceRejectSeatedApplication(t *testing.T) {
	apps := &interviewAppStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", Status: models.ApplicationStatusAlloted},
	}}
	svc := NewInterviewService(&interviewRepoStub{}, apps, nil, nil, nil, nil)

	_, err := svc.Reject(context.Background(), "app-1", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, apps.statusUpdates)
}

func TestInterviewServiceReject(t *testing.T) {
	apps := &interviewAppStub{applications: map[string]*models.Application{
		"app-1": {ID: "app-1", HallID: "hall-1", Status: models.ApplicationStatusScheduled},
	}}
	audit := &auditStub{}
	svc := NewInterviewService(&interviewRepoStub{}, apps, audit, nil, nil, nil)

	application, err := svc.Reject(context.Background(), "app-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, application.Status)
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusRejected}, apps.statusUpdates)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStatusChange, audit.logs[0].Action)
}
