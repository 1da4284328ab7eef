package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klass-lk/postboard/internal/model"
	"go.uber.org/zap"
)

const maxNameAttempts = 5

type LocalFileService struct {
	dir string
}

func NewLocalFileService(dir string) *LocalFileService {
	return &LocalFileService{dir: dir}
}

func (s *LocalFileService) Dir() string {
	return s.dir
}

func (s *LocalFileService) Upload(ctx context.Context, payload model.UploadPayload) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &model.UploadError{Op: "mkdir", Err: err}
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &model.UploadError{Op: "write", Err: err}
		}
		name := GenerateName(payload)
		err := s.writeExclusive(filepath.Join(s.dir, name), payload.Data)
		if errors.Is(err, fs.ErrExist) {
			zap.L().Debug("upload name collision, retrying", zap.String("name", name))
			continue
		}
		if err != nil {
			return "", &model.UploadError{Op: "write", Err: err}
		}
		return URLFor(name), nil
	}
	return "", &model.UploadError{Op: "write", Err: fmt.Errorf("no free file name after %d attempts", maxNameAttempts)}
}

func (s *LocalFileService) writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *LocalFileService) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalFileService) Delete(ctx context.Context, url string) error {
	name, err := NameFromURL(url)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrFileNotFound
	}
	return err
}
