package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/storage"
)

// FileServiceStub keeps uploads in memory.
type FileServiceStub struct {
	mu      sync.Mutex
	files   map[string][]byte
	Deleted []string

	UploadErr error
}

var _ storage.FileService = (*FileServiceStub)(nil)

func NewFileServiceStub() *FileServiceStub {
	return &FileServiceStub{files: map[string][]byte{}}
}

func (s *FileServiceStub) Upload(ctx context.Context, payload model.UploadPayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return "", s.UploadErr
	}
	name := storage.GenerateName(payload)
	s.files[name] = append([]byte(nil), payload.Data...)
	return storage.URLFor(name), nil
}

func (s *FileServiceStub) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FileServiceStub) Delete(ctx context.Context, url string) error {
	name, err := storage.NameFromURL(url)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, url)
	if _, ok := s.files[name]; !ok {
		return storage.ErrFileNotFound
	}
	delete(s.files, name)
	return nil
}

func (s *FileServiceStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
