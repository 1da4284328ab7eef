package cache

import "time"

// CacheEntry is a cached response as stored in Mongo or SQL.
type CacheEntry struct {
	Key       string   `bson:"_id"`
	Data      []byte   `bson:"data"`
	Tags      []string `bson:"tags,omitempty"`
	TTL       int64    `bson:"ttl"`
	CreatedAt int64    `bson:"createdAt"`
}

const (
	CacheKeyPrefix = "cache:"
	TagKeyPrefix   = "tag:"
)

func (e *CacheEntry) IsExpired() bool {
	return time.Now().Unix() > e.TTL
}
