package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klass-lk/postboard/internal/server"
	"github.com/klass-lk/postboard/internal/storage"
)

// UploadController serves stored images back under /uploads.
type UploadController struct {
	files storage.FileService
}

func NewUploadController(files storage.FileService) *UploadController {
	return &UploadController{files: files}
}

type UploadRequest struct {
	Name string `uri:"name" form:"-"`
}

func (c *UploadController) Register(group *server.ControllerGroup) {
	group.GET("/*name", c.GetUpload)
	group.HEAD("/*name", c.GetUpload)
}

func (c *UploadController) GetUpload(ctx *server.Context, req UploadRequest) error {
	name := strings.TrimPrefix(req.Name, "/")
	file, err := c.files.Open(ctx.Request.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return server.ErrNotFound.New("File not found")
		}
		return server.FromError(err, "Failed to read upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return server.FromError(err, "Failed to read upload")
	}
	ctx.Header("Cache-Control", "public, max-age=31536000, immutable")
	ctx.Data(http.StatusOK, mimetype.Detect(data).String(), data)
	return nil
}
