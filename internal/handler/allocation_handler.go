package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type allocationService interface {
	Assign(ctx context.Context, req models.AssignAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error)
	ManualAssign(ctx context.Context, req models.ManualAssignRequest, claims *models.JWTClaims) (*models.Allocation, error)
	Transfer(ctx context.Context, allocationID string, req models.TransferAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error)
	Cancel(ctx context.Context, allocationID string, req models.CancelAllocationRequest, claims *models.JWTClaims) (*models.Allocation, error)
	BulkCancel(ctx context.Context, req models.BulkCancelRequest, claims *models.JWTClaims) (*models.BulkCancelResult, error)
	List(ctx context.Context, filter models.AllocationFilter, claims *models.JWTClaims) ([]models.AllocationDetail, int, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Allocation, error)
	SearchStudent(ctx context.Context, studentID string, claims *models.JWTClaims) (*models.StudentSearchResult, error)
}

// AllocationHandler exposes seat assignment and lifecycle endpoints.
type AllocationHandler struct {
	service allocationService
}

// NewAllocationHandler builds a new handler.
func NewAllocationHandler(service allocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// List godoc
// @Summary List allocations in the admin's hall
// @Tags Allocations
// @Produce json
// @Param room_id query string false "Room filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.AllocationFilter{
		RoomID:    c.Query("room_id"),
		StudentID: c.Query("student_id"),
		Status:    models.AllocationStatus(c.Query("status")),
		Page:      page,
		PageSize:  pageSize,
	}
	allocations, total, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocations, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Get godoc
// @Summary Get one allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	allocation, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Assign godoc
// @Summary Seat a ranked candidate in a room
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body models.AssignAllocationRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /allocations/assign [post]
func (h *AllocationHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.AssignAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assign payload"))
		return
	}
	allocation, err := h.service.Assign(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// ManualAssign godoc
// @Summary Seat a student outside the candidate pipeline
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body models.ManualAssignRequest true "Manual assignment payload"
// @Success 201 {object} response.Envelope
// @Router /allocations/manual [post]
func (h *AllocationHandler) ManualAssign(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid manual assign payload"))
		return
	}
	allocation, err := h.service.ManualAssign(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// ManualSearch godoc
// @Summary Look up a student's current seat before a manual assignment
// @Tags Allocations
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations/manual-search [post]
func (h *AllocationHandler) ManualSearch(c *gin.Context) {
	claims := claimsFromContext(c)
	var req struct {
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
		return
	}
	result, err := h.service.SearchStudent(c.Request.Context(), req.StudentID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Transfer godoc
// @Summary Transfer an allocation to another room
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body models.TransferAllocationRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id}/transfer [post]
func (h *AllocationHandler) Transfer(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.TransferAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}
	allocation, err := h.service.Transfer(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Cancel godoc
// @Summary Vacate an allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body models.CancelAllocationRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id}/cancel [post]
func (h *AllocationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.CancelAllocationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
			return
		}
	}
	allocation, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// BulkCancel godoc
// @Summary Vacate several allocations with one shared reason
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body models.BulkCancelRequest true "Bulk cancel payload"
// @Success 200 {object} response.Envelope
// @Router /allocations/bulk-cancel [post]
func (h *AllocationHandler) BulkCancel(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.BulkCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk cancel payload"))
		return
	}
	result, err := h.service.BulkCancel(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
