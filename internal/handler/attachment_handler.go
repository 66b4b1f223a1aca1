package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/response"
)

type attachmentOpener interface {
	Open(token string) (*os.File, error)
}

// AttachmentHandler serves proof files behind signed download tokens.
type AttachmentHandler struct {
	attachments attachmentOpener
}

// NewAttachmentHandler builds a new handler.
func NewAttachmentHandler(attachments attachmentOpener) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// Download godoc
// @Summary Download a proof attachment with a signed token
// @Tags Renewals
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /files [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, err := h.attachments.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(file.Name()))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
