package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type rankingService interface {
	Rank(ctx context.Context, filter models.CandidateFilter, claims *models.JWTClaims) ([]models.Candidate, error)
	TopN(ctx context.Context, filter models.CandidateFilter, n int, claims *models.JWTClaims) ([]models.Candidate, error)
}

// CandidateHandler exposes the ranked candidate list.
type CandidateHandler struct {
	service rankingService
}

// NewCandidateHandler builds a new handler.
func NewCandidateHandler(service rankingService) *CandidateHandler {
	return &CandidateHandler{service: service}
}

// List godoc
// @Summary List ranked candidates for seat offers
// @Tags Candidates
// @Produce json
// @Param limit query int false "Return only the top N candidates"
// @Param department query string false "Department filter"
// @Param session query string false "Session filter"
// @Success 200 {object} response.Envelope
// @Router /candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := models.CandidateFilter{
		ProgramLevel: c.Query("program_level"),
		Department:   c.Query("department"),
		Session:      c.Query("session"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			limit = 0
		}
		candidates, err := h.service.TopN(c.Request.Context(), filter, limit, claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, candidates, nil)
		return
	}

	candidates, err := h.service.Rank(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}
