// Package testutil provides in-memory stand-ins for the store and upload sink.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/repository"
)

// PostRepoStub is an in-memory repository.PostRepository. Each insert is stamped
// one millisecond after the previous one so listings are deterministic.
type PostRepoStub struct {
	mu      sync.Mutex
	posts   map[string]model.Post
	clock   time.Time
	Inserts int

	InsertErr  error
	FindAllErr error
	FindErr    error
	UpdateErr  error
	DeleteErr  error
}

var _ repository.PostRepository = (*PostRepoStub)(nil)

func NewPostRepoStub() *PostRepoStub {
	return &PostRepoStub{
		posts: map[string]model.Post{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Reset drops every stored post and the recorded counters.
func (s *PostRepoStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = map[string]model.Post{}
	s.Inserts = 0
}

func (s *PostRepoStub) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *PostRepoStub) Insert(ctx context.Context, post model.Post) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return model.Post{}, s.InsertErr
	}
	s.Inserts++
	post.ID = uuid.Must(uuid.NewV7()).String()
	post.CreatedAt = s.tick()
	post.UpdatedAt = post.CreatedAt
	s.posts[post.ID] = post
	return post, nil
}

func (s *PostRepoStub) FindAll(ctx context.Context) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindAllErr != nil {
		return nil, s.FindAllErr
	}
	posts := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	repository.SortNewestFirst(posts)
	return posts, nil
}

func (s *PostRepoStub) FindByID(ctx context.Context, id string) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return model.Post{}, s.FindErr
	}
	return s.lookup(id)
}

func (s *PostRepoStub) Update(ctx context.Context, id string, update model.PostUpdate) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return model.Post{}, s.UpdateErr
	}
	post, err := s.lookup(id)
	if err != nil {
		return model.Post{}, err
	}
	update.Apply(&post)
	post.UpdatedAt = s.tick()
	s.posts[id] = post
	return post, nil
}

func (s *PostRepoStub) Delete(ctx context.Context, id string) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return model.Post{}, s.DeleteErr
	}
	post, err := s.lookup(id)
	if err != nil {
		return model.Post{}, err
	}
	delete(s.posts, id)
	return post, nil
}

func (s *PostRepoStub) lookup(id string) (model.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Post{}, model.ErrInvalidID
	}
	post, ok := s.posts[id]
	if !ok {
		return model.Post{}, model.ErrPostNotFound
	}
	return post, nil
}
