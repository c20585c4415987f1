package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/service"
)

// StorageHandler handles attachment uploads
type StorageHandler struct {
	media *service.MediaService
}

// NewStorageHandler creates a new StorageHandler
func NewStorageHandler(media *service.MediaService) *StorageHandler {
	return &StorageHandler{media: media}
}

// Upload handles POST /storage/:bucket (multipart field "file")
// @Summary Upload an attachment and return its public URL
// @Tags storage
// @Accept multipart/form-data
// @Produce json
// @Param bucket path string true "audio-messages or gym_uploads"
// @Param file formData file true "file"
// @Router /storage/{bucket} [post]
func (h *StorageHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "file is required", err)
		return
	}
	src, err := file.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "cannot read file", err)
		return
	}
	defer src.Close()

	result, err := h.media.Upload(c.Request.Context(), c.Param("bucket"), userID, file.Filename, src)
	if err != nil {
		respondError(c, "Upload failed", err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: result})
}
