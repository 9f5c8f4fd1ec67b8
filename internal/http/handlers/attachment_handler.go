package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/http/handlers/common"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/storage"
)

// AttachmentHandler загрузка и выдача фото объекта по заказу.
type AttachmentHandler struct {
	jobs  JobUseCases
	files AttachmentStore
}

func NewAttachmentHandler(jobs JobUseCases, files AttachmentStore) *AttachmentHandler {
	return &AttachmentHandler{jobs: jobs, files: files}
}

// Upload POST /api/jobs/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, apperror.Validation("поле file обязательно"))
		return
	}
	src, err := header.Open()
	if err != nil {
		common.RespondError(c, apperror.Validation("не удалось прочитать файл"))
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	stored, err := h.files.Save(ctx, jobID, header.Filename, src)
	if err != nil {
		common.RespondError(c, storageError(err))
		return
	}

	att := &models.JobAttachment{
		JobID:     jobID,
		FilePath:  stored.Path,
		FileName:  stored.Name,
		MimeType:  stored.MimeType,
		SizeBytes: stored.Size,
	}
	if err := h.jobs.AddAttachment(ctx, actor, att); err != nil {
		// файл без записи в базе никому не доступен
		if delErr := h.files.Delete(ctx, stored.Path); delErr != nil {
			logger.Log.WithFields(logrus.Fields{"path": stored.Path, "error": delErr}).Warn("attachment cleanup failed")
		}
		common.RespondError(c, err)
		return
	}
	common.RespondCreated(c, att)
}

// List GET /api/jobs/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	list, err := h.jobs.ListAttachments(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondOK(c, list)
}

// Download GET /api/jobs/:id/attachments/:attachmentId
func (h *AttachmentHandler) Download(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}
	attachmentID, err := common.ParseUUIDParam(c, "attachmentId")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	list, err := h.jobs.ListAttachments(c.Request.Context(), actor, jobID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	att := findAttachment(list, attachmentID)
	if att == nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeNotFound, "файл не найден"))
		return
	}

	f, err := h.files.Open(att.FilePath)
	if err != nil {
		common.RespondError(c, apperror.Internal(err))
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, att.SizeBytes, att.MimeType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", att.FileName),
	})
}

func findAttachment(list []models.JobAttachment, id uuid.UUID) *models.JobAttachment {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "размер файла превышает лимит")
	case errors.Is(err, storage.ErrEmptyFile):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "файл не может быть пустым")
	case errors.Is(err, storage.ErrUnsupportedType):
		return apperror.Wrap(err, apperror.ErrCodeValidation, "неподдерживаемый формат файла, разрешены фото, PDF и видео")
	}
	return apperror.Internal(err)
}
