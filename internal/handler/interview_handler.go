package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type interviewService interface {
	Schedule(ctx context.Context, req models.ScheduleInterviewsRequest, claims *models.JWTClaims) ([]models.Interview, error)
	ListQueue(ctx context.Context, filter models.InterviewFilter, claims *models.JWTClaims) ([]models.InterviewDetail, error)
	ConfirmScore(ctx context.Context, interviewID string, req models.ConfirmInterviewScoreRequest, claims *models.JWTClaims) (*models.Interview, error)
	Reject(ctx context.Context, applicationID string, claims *models.JWTClaims) (*models.Application, error)
}

// InterviewHandler exposes interview scheduling and scoring endpoints.
type InterviewHandler struct {
	service interviewService
}

// NewInterviewHandler builds a new handler.
func NewInterviewHandler(service interviewService) *InterviewHandler {
	return &InterviewHandler{service: service}
}

// Schedule godoc
// @Summary Schedule interviews for a batch of applications
// @Tags Interviews
// @Accept json
// @Produce json
// @Param payload body models.ScheduleInterviewsRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /interviews/schedule [post]
func (h *InterviewHandler) Schedule(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.ScheduleInterviewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	interviews, err := h.service.Schedule(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interviews)
}

// List godoc
// @Summary List the hall's interview queue
// @Tags Interviews
// @Produce json
// @Param awaiting query bool false "Only interviews without a confirmed score"
// @Param date query string false "Interview date filter"
// @Success 200 {object} response.Envelope
// @Router /interviews [get]
func (h *InterviewHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.InterviewFilter{
		AwaitingOnly: c.Query("awaiting") == "true",
		Date:         c.Query("date"),
		Page:         page,
		PageSize:     pageSize,
	}
	interviews, err := h.service.ListQueue(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, interviews, nil)
}

// ConfirmScore godoc
// @Summary Confirm an interview score
// @Tags Interviews
// @Accept json
// @Produce json
// @Param id path string true "Interview ID"
// @Param payload body models.ConfirmInterviewScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /interviews/{id}/score [post]
func (h *InterviewHandler) ConfirmScore(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.ConfirmInterviewScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	interview, err := h.service.ConfirmScore(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, interview, nil)
}

// Reject godoc
// @Summary Reject an application after interview
// @Tags Interviews
// @Produce json
// @Param applicationId path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /interviews/applications/{applicationId}/reject [post]
func (h *InterviewHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	application, err := h.service.Reject(c.Request.Context(), c.Param("applicationId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, application, nil)
}
