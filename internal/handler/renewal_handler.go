package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hall-adp-api/internal/models"
	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type renewalService interface {
	Eligibility(ctx context.Context, claims *models.JWTClaims) (*models.RenewalEligibility, error)
	Submit(ctx context.Context, req models.SubmitRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error)
	Decide(ctx context.Context, requestID string, req models.DecideRenewalRequest, claims *models.JWTClaims) (*models.RenewalRequest, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.RenewalRequest, error)
	List(ctx context.Context, filter models.RenewalFilter, claims *models.JWTClaims) ([]models.RenewalRequest, int, error)
}

type attachmentService interface {
	SaveProof(ctx context.Context, studentID, originalName string, data []byte) (string, error)
	SignedURL(recordID, relPath string) (string, time.Time, error)
}

// RenewalHandler exposes the allocation renewal lifecycle.
type RenewalHandler struct {
	service     renewalService
	attachments attachmentService
}

// NewRenewalHandler builds a new handler.
func NewRenewalHandler(service renewalService, attachments attachmentService) *RenewalHandler {
	return &RenewalHandler{service: service, attachments: attachments}
}

// Eligibility godoc
// @Summary Report whether the student may submit a renewal now
// @Tags Renewals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /renewals/eligibility [get]
func (h *RenewalHandler) Eligibility(c *gin.Context) {
	claims := claimsFromContext(c)
	eligibility, err := h.service.Eligibility(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligibility, nil)
}

// UploadProof godoc
// @Summary Upload a renewal proof attachment
// @Tags Renewals
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Proof document"
// @Success 201 {object} response.Envelope
// @Router /renewals/proof [post]
func (h *RenewalHandler) UploadProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.ErrProofRequired)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable attachment"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable attachment"))
		return
	}

	path, err := h.attachments.SaveProof(c.Request.Context(), claims.StudentID, fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"proof_attachment": path})
}

// Submit godoc
// @Summary Submit a renewal request for the active allocation
// @Tags Renewals
// @Accept json
// @Produce json
// @Param payload body models.SubmitRenewalRequest true "Renewal payload"
// @Success 201 {object} response.Envelope
// @Router /renewals [post]
func (h *RenewalHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.SubmitRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid renewal payload"))
		return
	}
	request, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List renewal requests
// @Tags Renewals
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /renewals [get]
func (h *RenewalHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.RenewalFilter{
		Status:   models.RenewalStatus(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}
	requests, total, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Decide godoc
// @Summary Record an admin decision on a renewal request
// @Tags Renewals
// @Accept json
// @Produce json
// @Param id path string true "Renewal request ID"
// @Param payload body models.DecideRenewalRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /renewals/{id}/decision [patch]
func (h *RenewalHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	var req models.DecideRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	request, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ProofURL godoc
// @Summary Issue a short-lived download link for a renewal's proof
// @Tags Renewals
// @Produce json
// @Param id path string true "Renewal request ID"
// @Success 200 {object} response.Envelope
// @Router /renewals/{id}/proof-url [get]
func (h *RenewalHandler) ProofURL(c *gin.Context) {
	claims := claimsFromContext(c)
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if request.ProofAttachment == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no proof attached"))
		return
	}
	token, expiresAt, err := h.attachments.SignedURL(request.ID, request.ProofAttachment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}
