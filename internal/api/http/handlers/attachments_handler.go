package handlers

import (
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/service"
	"github.com/spec-kit/intervention-service/internal/storage"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// AttachmentsHandler moves uploaded bytes into file storage and keeps the
// intervention metadata in step.
type AttachmentsHandler struct {
	service *service.InterventionService
	files   storage.FileStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(interventionService *service.InterventionService, files storage.FileStore, logger *zap.Logger) *AttachmentsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentsHandler{service: interventionService, files: files, logger: logger, now: time.Now}
}

// Upload POST /intervenciones/:id/adjuntos with multipart field "files".
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.NewValidationError("multipart form required", map[string]any{"field": "files"})
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return apperrors.NewValidationError("no files uploaded", map[string]any{"field": "files"})
	}
	if _, err := h.service.CanWrite(c.UserContext(), c.Params("id"), actor); err != nil {
		return err
	}

	uploadedAt := h.now().UTC()
	stored := make([]*storage.StoredFile, 0, len(headers))
	for _, header := range headers {
		file, err := h.save(storage.FolderAttachments, header)
		if err != nil {
			h.discard(stored)
			return err
		}
		stored = append(stored, file)
	}

	attachments := make([]domain.Attachment, len(stored))
	for i, f := range stored {
		attachments[i] = domain.Attachment{
			ID:          path.Base(f.Key),
			Name:        f.OriginalName,
			URL:         f.URL,
			Size:        f.Size,
			ContentType: f.ContentType,
			UploadedAt:  &uploadedAt,
			UploadedBy:  actor.UserID,
		}
	}
	updated, err := h.service.AppendAttachments(c.UserContext(), c.Params("id"), attachments, actor)
	if err != nil {
		h.discard(stored)
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// Remove DELETE /intervenciones/:id/adjuntos/:fileId. Attachment ids are the
// object name inside the attachments folder.
func (h *AttachmentsHandler) Remove(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	updated, removed, err := h.service.RemoveAttachment(c.UserContext(), c.Params("id"), c.Params("fileId"), actor)
	if err != nil {
		return err
	}
	key := path.Join(storage.FolderAttachments, removed.ID)
	if err := h.files.Delete(key); err != nil {
		h.logger.Warn("attachment object not deleted", zap.String("key", key), zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

// Signature POST /intervenciones/:id/firma with multipart field "firma".
func (h *AttachmentsHandler) Signature(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("firma")
	if err != nil {
		return apperrors.NewValidationError("signature file required", map[string]any{"field": "firma"})
	}
	current, err := h.service.CanWrite(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	stored, err := h.save(storage.FolderSignatures, header)
	if err != nil {
		return err
	}
	updated, err := h.service.Update(c.UserContext(), c.Params("id"), service.InterventionUpdateInput{
		SignatureURL: service.SetTo(stored.URL),
	}, actor)
	if err != nil {
		h.discard([]*storage.StoredFile{stored})
		return err
	}
	if current.SignatureURL != nil {
		if key, ok := h.files.KeyOf(*current.SignatureURL); ok && key != stored.Key {
			if err := h.files.Delete(key); err != nil {
				h.logger.Warn("previous signature not deleted", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return c.JSON(fiber.Map{"data": dto.NewInterventionResponse(updated)})
}

func (h *AttachmentsHandler) save(folder string, header *multipart.FileHeader) (*storage.StoredFile, error) {
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable upload", map[string]any{"name": header.Filename})
	}
	defer file.Close()
	return h.files.Save(folder, header.Filename, file)
}

// discard removes objects whose metadata was never persisted.
func (h *AttachmentsHandler) discard(files []*storage.StoredFile) {
	for _, f := range files {
		if err := h.files.Delete(f.Key); err != nil {
			h.logger.Warn("orphaned upload not deleted", zap.String("key", f.Key), zap.Error(err))
		}
	}
}
