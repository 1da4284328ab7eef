// Package storage holds the upload sink. Stored files are always addressed by the
// public URL /uploads/<name>, whichever backend keeps the bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/klass-lk/postboard/internal/model"
)

const URLPrefix = "/uploads/"

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

type FileService interface {
	// Upload stores the payload under a fresh unique name and returns its public URL.
	Upload(ctx context.Context, payload model.UploadPayload) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the file behind a URL returned by Upload.
	Delete(ctx context.Context, url string) error
}

// GenerateName builds "<unix-nano>-<8 random chars><ext>".
func GenerateName(payload model.UploadPayload) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), suffix, Extension(payload))
}

// Extension keeps the original extension as written, otherwise sniffs one from the bytes.
func Extension(payload model.UploadPayload) string {
	if ext := filepath.Ext(payload.OriginalName); ext != "" && ext != "." {
		return ext
	}
	if ext := mimetype.Detect(payload.Data).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

func URLFor(name string) string {
	return URLPrefix + name
}

// NameFromURL returns the stored name behind an upload URL.
func NameFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, URLPrefix) {
		return "", ErrInvalidName
	}
	return CleanName(strings.TrimPrefix(url, URLPrefix))
}

// CleanName rejects names that could escape the upload directory.
func CleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	return name, nil
}
