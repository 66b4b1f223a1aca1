package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type waitlistService interface {
	Add(ctx context.Context, req models.AddWaitlistRequest, claims *models.JWTClaims) (*models.WaitlistEntry, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]models.WaitlistEntryDetail, error)
	Promote(ctx context.Context, entryID string, req models.PromoteWaitlistRequest, claims *models.JWTClaims) (*models.Allocation, error)
	BulkRemove(ctx context.Context, req models.BulkRemoveWaitlistRequest, claims *models.JWTClaims) (int64, error)
}

// WaitlistHandler exposes hall waitlist endpoints.
type WaitlistHandler struct {
	service waitlistService
}

// NewWaitlistHandler builds a new handler.
func NewWaitlistHandler(service waitlistService) *WaitlistHandler {
	return &WaitlistHandler{service: service}
}

// List godoc
// @Summary List the hall waitlist in position order
// @Tags Waitlist
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /waitlist [get]
func (h *WaitlistHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	entries, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Add godoc
// @Summary Add an application to the waitlist
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body models.AddWaitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /waitlist [post]
func (h *WaitlistHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.AddWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid waitlist payload"))
		return
	}
	entry, err := h.service.Add(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Promote godoc
// @Summary Promote a waitlisted candidate into a room
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Param payload body models.PromoteWaitlistRequest true "Promotion payload"
// @Success 201 {object} response.Envelope
// @Router /waitlist/{id}/promote [post]
func (h *WaitlistHandler) Promote(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.PromoteWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promote payload"))
		return
	}
	allocation, err := h.service.Promote(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// BulkRemove godoc
// @Summary Remove waitlist entries
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body models.BulkRemoveWaitlistRequest true "Removal payload"
// @Success 200 {object} response.Envelope
// @Router /waitlist/bulk-remove [post]
func (h *WaitlistHandler) BulkRemove(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.BulkRemoveWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk remove payload"))
		return
	}
	removed, err := h.service.BulkRemove(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
