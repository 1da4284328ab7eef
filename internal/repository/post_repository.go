// Package repository persists posts. Every backend orders listings by creation
// time, newest first, and reports missing records with model.ErrPostNotFound.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/klass-lk/postboard/internal/model"
)

const PostCollection = "posts"

type PostRepository interface {
	// Insert assigns the id and both timestamps and returns the stored record.
	Insert(ctx context.Context, post model.Post) (model.Post, error)
	FindAll(ctx context.Context) ([]model.Post, error)
	FindByID(ctx context.Context, id string) (model.Post, error)
	Update(ctx context.Context, id string, update model.PostUpdate) (model.Post, error)
	// Delete removes the record and returns it as it was before removal.
	Delete(ctx context.Context, id string) (model.Post, error)
}

// SortNewestFirst orders posts by createdAt descending, ties broken by id descending.
func SortNewestFirst(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}

func now(precision time.Duration) time.Time {
	return time.Now().UTC().Truncate(precision)
}
