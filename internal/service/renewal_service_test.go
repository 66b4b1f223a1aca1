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

type renewalRepoStub struct {
	created    []*models.RenewalRequest
	createErr  error
	openExists bool
	decided    *models.RenewalRequest
	decideErr  error
	decisions  []repository.DecideParams
	requests   []models.RenewalRequest
	filters    []models.RenewalFilter
}

func (s *renewalRepoStub) Create(_ context.Context, request *models.RenewalRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	request.ID = "renewal-1"
	s.created = append(s.created, request)
	return nil
}

func (s *renewalRepoStub) List(_ context.Context, filter models.RenewalFilter) ([]models.RenewalRequest, int, error) {
	s.filters = append(s.filters, filter)
	return s.requests, len(s.requests), nil
}

func (s *renewalRepoStub) FindByID(_ context.Context, id string) (*models.RenewalRequest, error) {
	return nil, sql.ErrNoRows
}

func (s *renewalRepoStub) ExistsOpenForAllocation(_ context.Context, allocationID string) (bool, error) {
	return s.openExists, nil
}

func (s *renewalRepoStub) Decide(_ context.Context, params repository.DecideParams) (*models.RenewalRequest, error) {
	s.decisions = append(s.decisions, params)
	return s.decided, s.decideErr
}

type activeAllocationStub struct {
	allocation *models.Allocation
}

func (s activeAllocationStub) FindActiveByStudent(_ context.Context, studentID string) (*models.Allocation, error) {
	if s.allocation == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.allocation
	return &copied, nil
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-9", Role: models.RoleStudent, HallID: "hall-1", StudentID: "student-1"}
}

func renewalServiceAt(t *testing.T, repo *renewalRepoStub, allocation *models.Allocation, now time.Time) *RenewalService {
	t.Helper()
	svc := NewRenewalService(repo, activeAllocationStub{allocation: allocation}, &auditStub{}, &eventsStub{}, 3, 12, 12, nil, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRenewalServiceSubmitBeforeWindowOpens(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	allocation := activeAllocation()
	allocation.RenewalExpiresAt = expiry
	repo := &renewalRepoStub{}

	// Four months out the window is still shut.
	svc := renewalServiceAt(t, repo, allocation, expiry.AddDate(0, -4, 0))
	_, err := svc.Submit(context.Background(), models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "proofs/student-1/fee.pdf",
	}, studentClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrWindowClosed)
	assert.Empty(t, repo.created)
}

func TestRenewalServiceSubmitInsideWindow(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	allocation := activeAllocation()
	allocation.RenewalExpiresAt = expiry
	repo := &renewalRepoStub{}

	svc := renewalServiceAt(t, repo, allocation, expiry.AddDate(0, -3, 0))
	request, err := svc.Submit(context.Background(), models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "proofs/student-1/fee.pdf",
	}, studentClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RenewalStatusPending, request.Status)
	assert.Equal(t, allocation.ID, request.AllocationID)
	assert.Equal(t, "student-1", request.StudentID)
	require.Len(t, repo.created, 1)
}

func TestRenewalServiceSubmitRequiresProof(t *testing.T) {
	repo := &renewalRepoStub{}
	svc := renewalServiceAt(t, repo, activeAllocation(), time.Now().UTC())

	_, err := svc.Submit(context.Background(), models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "   ",
	}, studentClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrProofRequired)
	assert.Empty(t, repo.created)
}

func TestRenewalServiceSubmitDuplicateOpenRequest(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	allocation := activeAllocation()
	allocation.RenewalExpiresAt = expiry
	repo := &renewalRepoStub{openExists: true}

	svc := renewalServiceAt(t, repo, allocation, expiry.AddDate(0, -1, 0))
	_, err := svc.Submit(context.Background(), models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "proofs/student-1/fee.pdf",
	}, studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRenewalServiceEligibilityWindow(t *testing.T) {
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	allocation := activeAllocation()
	allocation.RenewalExpiresAt = expiry
	repo := &renewalRepoStub{}

	early := renewalServiceAt(t, repo, allocation, expiry.AddDate(0, -4, 0))
	eligibility, err := early.Eligibility(context.Background(), studentClaims())
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "renewal window not yet open", eligibility.Reason)
	require.NotNil(t, eligibility.WindowOpens)
	assert.Equal(t, expiry.AddDate(0, -3, 0), *eligibility.WindowOpens)

	open := renewalServiceAt(t, repo, allocation, expiry.AddDate(0, -2, 0))
	eligibility, err = open.Eligibility(context.Background(), studentClaims())
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)
}

func TestRenewalServiceEligibilityWithoutAllocation(t *testing.T) {
	svc := renewalServiceAt(t, &renewalRepoStub{}, nil, time.Now().UTC())

	eligibility, err := svc.Eligibility(context.Background(), studentClaims())
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "no active allocation", eligibility.Reason)
}

func TestRenewalServiceDecideRejectsExtensionAboveMaximum(t *testing.T) {
	repo := &renewalRepoStub{}
	svc := renewalServiceAt(t, repo, activeAllocation(), time.Now().UTC())

	months := 36
	_, err := svc.Decide(context.Background(), "renewal-1", models.DecideRenewalRequest{
		Status:          models.RenewalStatusApproved,
		ExtensionMonths: &months,
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.decisions)
}

func TestRenewalServiceDecideRejectsNonPositiveExtension(t *testing.T) {
	repo := &renewalRepoStub{}
	svc := renewalServiceAt(t, repo, activeAllocation(), time.Now().UTC())

	months := 0
	_, err := svc.Decide(context.Background(), "renewal-1", models.DecideRenewalRequest{
		Status:          models.RenewalStatusApproved,
		ExtensionMonths: &months,
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.decisions)
}

func TestRenewalServiceDecideFinalizedSurfaces(t *testing.T) {
	repo := &renewalRepoStub{decideErr: appErrors.ErrRenewalFinalized}
	svc := renewalServiceAt(t, repo, activeAllocation(), time.Now().UTC())

	note := "already settled"
	_, err := svc.Decide(context.Background(), "renewal-1", models.DecideRenewalRequest{
		Status: models.RenewalStatusRejected,
		Note:   &note,
	}, adminClaims())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRenewalFinalized)
}

func TestRenewalServiceListScopesStudentsToThemselves(t *testing.T) {
	repo := &renewalRepoStub{}
	svc := renewalServiceAt(t, repo, activeAllocation(), time.Now().UTC())

	_, _, err := svc.List(context.Background(), models.RenewalFilter{HallID: "hall-9", StudentID: "someone-else"}, studentClaims())
	require.NoError(t, err)
	require.Len(t, repo.filters, 1)
	assert.Equal(t, "student-1", repo.filters[0].StudentID)
	assert.Empty(t, repo.filters[0].HallID)

	_, _, err = svc.List(context.Background(), models.RenewalFilter{}, adminClaims())
	require.NoError(t, err)
	require.Len(t, repo.filters, 2)
	assert.Equal(t, "hall-1", repo.filters[1].HallID)
}
