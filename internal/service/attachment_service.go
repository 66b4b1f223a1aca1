package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/hall-adp-api/pkg/errors"
	"github.com/noah-isme/hall-adp-api/pkg/storage"
)

// AttachmentService stores renewal proof files and issues short-lived
// signed download tokens. Storage mechanics stay behind this boundary;
// the rest of the pipeline only ever sees relative paths.
type AttachmentService struct {
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
	logger       *zap.Logger
}

// NewAttachmentService builds an AttachmentService.
func NewAttachmentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, maxSizeBytes int64, allowedMIMEs []string, logger *zap.Logger) *AttachmentService {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 5 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, mime := range allowedMIMEs {
		allowed[mime] = struct{}{}
	}
	return &AttachmentService{
		store:        store,
		signer:       signer,
		maxSizeBytes: maxSizeBytes,
		allowedMIMEs: allowed,
		logger:       logger,
	}
}

// SaveProof validates and stores an uploaded proof file, returning the
// relative path to persist on the renewal request.
func (s *AttachmentService) SaveProof(_ context.Context, studentID, originalName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErrors.ErrProofRequired
	}
	if int64(len(data)) > s.maxSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, "attachment exceeds the size limit")
	}
	if len(s.allowedMIMEs) > 0 {
		mime := http.DetectContentType(data)
		if _, ok := s.allowedMIMEs[mime]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", mime))
		}
	}

	ext := filepath.Ext(originalName)
	relPath := filepath.Join("proofs", studentID, fmt.Sprintf("%s%s", uuid.NewString(), ext))
	stored, err := s.store.Save(relPath, data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	return stored, nil
}

// SignedURL issues a download token for the given renewal's proof.
func (s *AttachmentService) SignedURL(recordID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(recordID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
	}
	return token, expiresAt, nil
}

// Open validates a download token and returns the underlying file.
func (s *AttachmentService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	return file, nil
}
