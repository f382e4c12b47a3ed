package handlers

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/auction-backend/internal/http/handlers/common"
	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
	"github.com/ignatzorin/auction-backend/internal/storage"
)

// MediaHandler принимает загрузку изображений товаров.
type MediaHandler struct {
	images *storage.ImageStorage
}

// NewMediaHandler создаёт хэндлер.
func NewMediaHandler(images *storage.ImageStorage) *MediaHandler {
	return &MediaHandler{images: images}
}

// Upload обрабатывает POST /api/media (multipart поле "file").
func (h *MediaHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeValidation, apperror.Message{
			AR: "الملف مطلوب",
			EN: "File is required",
		}))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.RespondError(c, err)
		return
	}
	defer file.Close()

	relativePath, size, err := h.images.Save(c.Request.Context(), userID, file)
	if err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, apperror.Message{
			AR: "الملف ليس صورة صالحة",
			EN: "File is not a valid image",
		}))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"path": relativePath,
		"url":  path.Join("/media", relativePath),
		"size": size,
	})
}
