// Package cache stores rendered GET responses so that listing posts does not hit
// the store on every request. Entries are grouped by tags and dropped per tag
// when the underlying data changes.
package cache

import (
	"context"
	"time"
)

// PostsTag groups every cached response derived from the post collection.
const PostsTag = "posts"

type CacheService interface {
	// Set stores a value with the given tags for the given duration.
	Set(ctx context.Context, key string, data []byte, tags []string, duration time.Duration) error

	// Get returns nil without an error on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Invalidate removes all entries associated with the given tags.
	Invalidate(ctx context.Context, tags ...string) error
}
