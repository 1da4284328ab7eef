package cache

import (
	"context"
	"sync/atomic"
)

// Versioned is implemented by caches that count invalidations. CacheMiddleware
// uses it to drop a response whose data may predate an invalidation.
type Versioned interface {
	Version() uint64
}

// VersionedCache bumps a version on every Invalidate. The version is local to
// the process, so other instances still rely on the entry TTL.
type VersionedCache struct {
	CacheService
	version atomic.Uint64
}

func NewVersionedCache(service CacheService) *VersionedCache {
	return &VersionedCache{CacheService: service}
}

func (c *VersionedCache) Version() uint64 {
	return c.version.Load()
}

// Invalidate bumps the version before dropping entries, so a request that
// read the store earlier sees the change when it goes to store its response.
func (c *VersionedCache) Invalidate(ctx context.Context, tags ...string) error {
	c.version.Add(1)
	return c.CacheService.Invalidate(ctx, tags...)
}
