package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisCacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheService(client), mr
}

func TestRedisCacheService_SetAndGet(t *testing.T) {
	svc, _ := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k1", []byte("v1"), nil, time.Minute))

	data, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	missing, err := svc.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisCacheService_Expiry(t *testing.T) {
	svc, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k1", []byte("v1"), nil, time.Second))
	mr.FastForward(2 * time.Second)

	data, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRedisCacheService_Invalidate(t *testing.T) {
	svc, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "list", []byte("[]"), []string{PostsTag}, time.Minute))
	require.NoError(t, svc.Set(ctx, "other", []byte("x"), []string{"other"}, time.Minute))

	require.NoError(t, svc.Invalidate(ctx, PostsTag))

	data, err := svc.Get(ctx, "list")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.False(t, mr.Exists(TagKeyPrefix+PostsTag))

	data, err = svc.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
