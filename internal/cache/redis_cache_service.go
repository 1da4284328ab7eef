package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheService keeps each entry under cache:<key> with a native TTL and
// tracks membership in a set per tag.
type RedisCacheService struct {
	client redis.UniversalClient
}

func NewRedisCacheService(client redis.UniversalClient) *RedisCacheService {
	return &RedisCacheService{client: client}
}

func (s *RedisCacheService) Set(ctx context.Context, key string, data []byte, tags []string, duration time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CacheKeyPrefix+key, data, duration)
		for _, tag := range tags {
			pipe.SAdd(ctx, TagKeyPrefix+tag, key)
		}
		return nil
	})
	return err
}

func (s *RedisCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *RedisCacheService) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		keys, err := s.client.SMembers(ctx, TagKeyPrefix+tag).Result()
		if err != nil {
			return err
		}
		toDelete := make([]string, 0, len(keys)+1)
		for _, key := range keys {
			toDelete = append(toDelete, CacheKeyPrefix+key)
		}
		toDelete = append(toDelete, TagKeyPrefix+tag)
		if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
			return err
		}
	}
	return nil
}
