package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type formService interface {
	List(ctx context.Context, claims *models.JWTClaims) ([]models.Form, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Form, error)
}

// FormHandler exposes the hall's admission forms.
type FormHandler struct {
	service formService
}

// NewFormHandler builds a new handler.
func NewFormHandler(service formService) *FormHandler {
	return &FormHandler{service: service}
}

// List godoc
// @Summary List admission forms
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	forms, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// Get godoc
// @Summary Get one admission form with its field schema
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	form, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}
