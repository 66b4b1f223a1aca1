package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type applicationService interface {
	List(ctx context.Context, filter models.ApplicationFilter, rawStatus string, claims *models.JWTClaims) ([]models.Application, int, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Application, error)
	ListOwn(ctx context.Context, claims *models.JWTClaims) ([]models.Application, error)
	UpdateStatus(ctx context.Context, id, rawStatus string, claims *models.JWTClaims) (*models.Application, error)
}

type scoreService interface {
	Recompute(ctx context.Context, applicationID string, claims *models.JWTClaims) (*models.Application, error)
}

// ApplicationHandler exposes application listing, status moves and score
// recomputation.
type ApplicationHandler struct {
	service applicationService
	scores  scoreService
}

// NewApplicationHandler builds a new handler.
func NewApplicationHandler(service applicationService, scores scoreService) *ApplicationHandler {
	return &ApplicationHandler{service: service, scores: scores}
}

// List godoc
// @Summary List applications in the admin's hall
// @Tags Applications
// @Produce json
// @Param status query string false "Status filter, legacy aliases accepted"
// @Param department query string false "Department filter"
// @Param session query string false "Session filter"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.ApplicationFilter{
		FormID:       c.Query("form_id"),
		Department:   c.Query("department"),
		Session:      c.Query("session"),
		ProgramLevel: c.Query("program_level"),
		Page:         page,
		PageSize:     pageSize,
	}
	applications, total, err := h.service.List(c.Request.Context(), filter, c.Query("status"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Mine godoc
// @Summary List the calling student's applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ApplicationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	applications, err := h.service.ListOwn(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, nil)
}

// Get godoc
// @Summary Get one application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	application, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// UpdateStatus godoc
// @Summary Move an application to a new status
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body object true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/status [patch]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	var payload struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	application, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}

// RecomputeScore godoc
// @Summary Recompute an application's score from its form schema
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/score [post]
func (h *ApplicationHandler) RecomputeScore(c *gin.Context) {
	claims := claimsFromContext(c)
	application, err := h.scores.Recompute(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}
