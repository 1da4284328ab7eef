package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CacheCollection = "cache_entries"

type MongoCacheService struct {
	collection *mongo.Collection
}

func NewMongoCacheService(db *mongo.Database) *MongoCacheService {
	return &MongoCacheService{collection: db.Collection(CacheCollection)}
}

func (s *MongoCacheService) Set(ctx context.Context, key string, data []byte, tags []string, duration time.Duration) error {
	now := time.Now()
	entry := CacheEntry{
		Key:       key,
		Data:      data,
		Tags:      tags,
		TTL:       now.Add(duration).Unix(),
		CreatedAt: now.Unix(),
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, entry, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	var entry CacheEntry
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if entry.IsExpired() {
		_, _ = s.collection.DeleteOne(ctx, bson.M{"_id": key})
		return nil, nil
	}
	return entry.Data, nil
}

// Invalidate relies on Mongo matching a scalar against an array field.
func (s *MongoCacheService) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.collection.DeleteMany(ctx, bson.M{"tags": bson.M{"$in": tags}})
	return err
}
