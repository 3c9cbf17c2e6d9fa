package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"
)

// FileHandler serves stored receipt files by key.
type FileHandler struct {
	store storage.ObjectStore
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(store storage.ObjectStore) *FileHandler {
	return &FileHandler{store: store}
}

// GetFile streams a receipt file.
// @Summary     Get a receipt file
// @Tags        files
// @Produce     octet-stream
// @Param       path path string true "Object key"
// @Success     200 {file} binary "File content"
// @Failure     404 {object} ErrorResponse "File not found"
// @Router      /files/{path} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	key, err := storage.CleanKey(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		respondWithError(c, apperrors.ErrFileNotFound)
		return
	}

	data, contentType, err := h.store.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		respondWithError(c, apperrors.ErrFileNotFound)
		return
	}
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrStorageFailure, err))
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, data)
}
