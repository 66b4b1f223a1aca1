package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/service"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type dashboardService interface {
	Snapshot(ctx context.Context, claims *models.JWTClaims) (*service.DashboardSnapshot, error)
}

// DashboardHandler exposes the cached hall dashboard.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler builds a new handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Snapshot godoc
// @Summary Hall occupancy and waitlist snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Snapshot(c *gin.Context) {
	claims := claimsFromContext(c)
	snapshot, err := h.service.Snapshot(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}
