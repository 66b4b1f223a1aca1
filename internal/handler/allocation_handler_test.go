package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hall-adp-api/internal/middleware"
	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
)

type allocationServiceMock struct {
	assignResp     *models.Allocation
	assignErr      error
	assignCalled   bool
	lastAssign     models.AssignAllocationRequest
	manualResp     *models.Allocation
	manualErr      error
	cancelResp     *models.Allocation
	cancelErr      error
	lastCancel     models.CancelAllocationRequest
	bulkResp       *models.BulkCancelResult
	bulkErr        error
	listResp       []models.AllocationDetail
	listTotal      int
	lastListFilter models.AllocationFilter
}

func (m *allocationServiceMock) Assign(ctx context.Context, req models.AssignAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	m.assignCalled = true
	m.lastAssign = req
	return m.assignResp, m.assignErr
}

func (m *allocationServiceMock) ManualAssign(ctx context.Context, req models.ManualAssignRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	return m.manualResp, m.manualErr
}

func (m *allocationServiceMock) Transfer(ctx context.Context, allocationID string, req models.TransferAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	return nil, appErrors.ErrNotFound
}

func (m *allocationServiceMock) Cancel(ctx context.Context, allocationID string, req models.CancelAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error) {
	m.lastCancel = req
	return m.cancelResp, m.cancelErr
}

func (m *allocationServiceMock) BulkCancel(ctx context.Context, req models.BulkCancelRequest, claims *models.JWTClaims) (*models.BulkCancelResult, error) {
	return m.bulkResp, m.bulkErr
}

func (m *allocationServiceMock) List(ctx context.Context, filter models.AllocationFilter, claims *models.JWTClaims) ([]models.AllocationDetail, int, error) {
	m.lastListFilter = filter
	return m.listResp, m.listTotal, nil
}

func (m *allocationServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Allocation, error) {
	return nil, appErrors.ErrNotFound
}

func (m *allocationServiceMock) SearchStudent(ctx context.Context, studentID string, claims *models.JWTClaims) (*models.StudentSearchResult, error) {
	return &models.StudentSearchResult{StudentID: studentID}, nil
}

func adminContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleHallAdmin, HallID: "hall-1"}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestAllocationHandlerAssign(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &allocationServiceMock{assignResp: &models.Allocation{ID: "alloc-1", RoomID: "room-1"}}
	handler := NewAllocationHandler(mockSvc)

	payload, _ := json.Marshal(models.AssignAllocationRequest{ApplicationID: "app-1", RoomID: "room-1"})
	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/allocations/assign", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Assign(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.assignCalled)
	assert.Equal(t, "app-1", mockSvc.lastAssign.ApplicationID)
}

func TestAllocationHandlerAssignRoomFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &allocationServiceMock{assignErr: appErrors.ErrRoomFull}
	handler := NewAllocationHandler(mockSvc)

	payload, _ := json.Marshal(models.AssignAllocationRequest{ApplicationID: "app-1", RoomID: "room-1"})
	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/allocations/assign", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Assign(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrRoomFull.Code, envelope.Error.Code)
}

func TestAllocationHandlerAssignInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAllocationHandler(&allocationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/allocations/assign", bytes.NewBufferString(`{"application_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Assign(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllocationHandlerCancelWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &allocationServiceMock{cancelResp: &models.Allocation{ID: "alloc-1", Status: models.AllocationStatusVacated}}
	handler := NewAllocationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/allocations/alloc-1/cancel", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "alloc-1"}}

	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.lastCancel.Reason)
}

func TestAllocationHandlerListPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &allocationServiceMock{listTotal: 42}
	handler := NewAllocationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/allocations?page=2&page_size=10&room_id=room-1", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mockSvc.lastListFilter.Page)
	assert.Equal(t, 10, mockSvc.lastListFilter.PageSize)
	assert.Equal(t, "room-1", mockSvc.lastListFilter.RoomID)
}
