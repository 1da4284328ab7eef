// Package service implements the post operations on top of a store and an upload sink.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/klass-lk/postboard/internal/cache"
	"github.com/klass-lk/postboard/internal/metrics"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/repository"
	"github.com/klass-lk/postboard/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultCreateTimeout  = 30 * time.Second
	DefaultMaxUploadBytes = 10 * 1024 * 1024
)

type PostService struct {
	repo           repository.PostRepository
	files          storage.FileService
	cache          cache.CacheService
	validate       *validator.Validate
	createTimeout  time.Duration
	maxUploadBytes int64
}

func NewPostService(repo repository.PostRepository, files storage.FileService) *PostService {
	return &PostService{
		repo:           repo,
		files:          files,
		validate:       newValidator(),
		createTimeout:  DefaultCreateTimeout,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithCache makes every successful mutation drop the cached post listings.
func (s *PostService) WithCache(c cache.CacheService) *PostService {
	s.cache = c
	return s
}

func (s *PostService) WithCreateTimeout(timeout time.Duration) *PostService {
	s.createTimeout = timeout
	return s
}

func (s *PostService) WithMaxUploadSize(bytes int64) *PostService {
	s.maxUploadBytes = bytes
	return s
}

func (s *PostService) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id string) (model.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Post{}, translateStoreError("get", id, err)
	}
	return post, nil
}

// CreatePost validates before any side effect. The image is stored before the
// record is inserted and removed again if the insert fails.
func (s *PostService) CreatePost(ctx context.Context, in model.PostInput, image *model.UploadPayload) (model.Post, error) {
	in = in.Normalize()
	if err := s.validateInput(in); err != nil {
		return model.Post{}, err
	}
	if err := s.validateImage(image); err != nil {
		return model.Post{}, err
	}

	if s.createTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.createTimeout)
		defer cancel()
	}

	post := model.Post{
		Title:   in.Title,
		Content: in.Content,
		Author:  in.Author,
	}

	if image.Present() {
		url, err := s.files.Upload(ctx, *image)
		if err != nil {
			return model.Post{}, asUploadError(err)
		}
		post.ImageURL = &url
		metrics.UploadBytes.Add(float64(image.Size()))
	}

	saved, err := s.repo.Insert(ctx, post)
	if err != nil {
		if post.ImageURL != nil {
			s.removeImage(ctx, *post.ImageURL)
		}
		return model.Post{}, &model.StorageError{Op: "insert", Err: err}
	}

	metrics.PostsCreated.Inc()
	s.invalidate(ctx)
	return saved, nil
}

// UpdatePost applies only the supplied fields. An empty update returns the record unchanged.
func (s *PostService) UpdatePost(ctx context.Context, id string, update model.PostUpdate) (model.Post, error) {
	update = update.Normalize()
	if err := s.validateUpdate(update); err != nil {
		return model.Post{}, err
	}
	if update.IsEmpty() {
		return s.GetPost(ctx, id)
	}

	post, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return model.Post{}, translateStoreError("update", id, err)
	}
	s.invalidate(ctx)
	return post, nil
}

// DeletePost returns the removed record. Deleting an absent id is a NotFoundError.
func (s *PostService) DeletePost(ctx context.Context, id string) (model.Post, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return model.Post{}, translateStoreError("delete", id, err)
	}
	if removed.ImageURL != nil {
		s.removeImage(ctx, *removed.ImageURL)
	}
	s.invalidate(ctx)
	return removed, nil
}

func (s *PostService) removeImage(ctx context.Context, url string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), url); err != nil {
		zap.L().Warn("failed to remove stored upload", zap.String("url", url), zap.Error(err))
	}
}

func (s *PostService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), cache.PostsTag); err != nil {
		zap.L().Warn("failed to invalidate post cache", zap.Error(err))
	}
}

func translateStoreError(op, id string, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidID):
		return model.NewValidationError(InvalidIDMessage, "id")
	case errors.Is(err, model.ErrPostNotFound):
		return &model.NotFoundError{ID: id}
	default:
		return &model.StorageError{Op: op, Err: err}
	}
}

func asUploadError(err error) error {
	var uploadErr *model.UploadError
	if errors.As(err, &uploadErr) {
		return err
	}
	return &model.UploadError{Op: "store", Err: err}
}
