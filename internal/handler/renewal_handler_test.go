package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/middleware"
	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type renewalServiceMock struct {
	eligibility  *models.RenewalEligibility
	submitResp   *models.RenewalRequest
	submitErr    error
	submitCalled bool
	decideResp   *models.RenewalRequest
	decideErr    error
	getResp      *models.RenewalRequest
	getErr       error
	listResp     []models.RenewalRequest
}

func (m *renewalServiceMock) Eligibility(ctx context.Context, claims *models.JWTClaims) (*models.RenewalEligibility, error) {
	return m.eligibility, nil
}

func (m *renewalServiceMock) Submit(ctx context.Context, req models.SubmitRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	m.submitCalled = true
	return m.submitResp, m.submitErr
}

func (m *renewalServiceMock) Decide(ctx context.Context, requestID string, req models.DecideRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	return m.decideResp, m.decideErr
}

func (m *renewalServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.RenewalRequest, error) {
	return m.getResp, m.getErr
}

func (m *renewalServiceMock) List(ctx context.Context, filter models.RenewalFilter, claims *models.JWTClaims) ([]models.RenewalRequest, int, error) {
	return m.listResp, len(m.listResp), nil
}

type attachmentServiceMock struct {
	savedPath string
	saveErr   error
	token     string
	signErr   error
}

func (m *attachmentServiceMock) SaveProof(ctx context.Context, studentID, originalName string, data []byte) (string, error) {
	return m.savedPath, m.saveErr
}

func (m *attachmentServiceMock) SignedURL(recordID, relPath string) (string, time.Time, error) {
	return m.token, time.Now().Add(10 * time.Minute), m.signErr
}

func studentContext(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "user-9", Role: models.RoleStudent, HallID: "hall-1", StudentID: "student-1",
	})
	return c
}

func TestRenewalHandlerEligibility(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{eligibility: &models.RenewalEligibility{Eligible: true}}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{})

	w := httptest.NewRecorder()
	c := studentContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/renewals/eligibility", nil)
	c.Request = req

	handler.Eligibility(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eligible":true`)
}

func TestRenewalHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{submitResp: &models.RenewalRequest{ID: "renewal-1", Status: models.RenewalStatusPending}}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{})

	payload, _ := json.Marshal(models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "proofs/student-1/fee.pdf",
	})
	w := httptest.NewRecorder()
	c := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/renewals", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
}

func TestRenewalHandlerSubmitWindowClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{submitErr: appErrors.ErrWindowClosed}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{})

	payload, _ := json.Marshal(models.SubmitRenewalRequest{
		AcademicYear:    "2026-27",
		ProofAttachment: "proofs/student-1/fee.pdf",
	})
	w := httptest.NewRecorder()
	c := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/renewals", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRenewalHandlerProofURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{getResp: &models.RenewalRequest{
		ID:              "renewal-1",
		ProofAttachment: "proofs/student-1/fee.pdf",
	}}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{token: "signed-token"})

	w := httptest.NewRecorder()
	c := studentContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/renewals/renewal-1/proof-url", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "renewal-1"}}

	handler.ProofURL(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "signed-token")
}

func TestRenewalHandlerProofURLMissingAttachment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{getResp: &models.RenewalRequest{ID: "renewal-1"}}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{})

	w := httptest.NewRecorder()
	c := studentContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/renewals/renewal-1/proof-url", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "renewal-1"}}

	handler.ProofURL(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenewalHandlerDecide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &renewalServiceMock{decideResp: &models.RenewalRequest{ID: "renewal-1", Status: models.RenewalStatusApproved}}
	handler := NewRenewalHandler(mockSvc, &attachmentServiceMock{})

	payload, _ := json.Marshal(models.DecideRenewalRequest{Status: models.RenewalStatusApproved})
	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/renewals/renewal-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "renewal-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"APPROVED"`)
}
