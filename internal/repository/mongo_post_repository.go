package repository

import (
	"context"
	"errors"
	"time"

	"github.com/klass-lk/postboard/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPostRepository struct {
	collection *mongo.Collection
}

func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		collection: db.Collection(PostCollection),
	}
}

// EnsureIndexes creates the createdAt index used by FindAll.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	return err
}

func (r *MongoPostRepository) Insert(ctx context.Context, post model.Post) (model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ts := now(time.Millisecond)
	post.ID = primitive.NewObjectID().Hex()
	post.CreatedAt = ts
	post.UpdatedAt = ts

	if _, err := r.collection.InsertOne(ctx, post); err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (r *MongoPostRepository) FindAll(ctx context.Context) ([]model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []model.Post{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *MongoPostRepository) FindByID(ctx context.Context, id string) (model.Post, error) {
	if err := validateObjectID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result model.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if err != nil {
		return model.Post{}, translateMongoError(err)
	}
	return result, nil
}

func (r *MongoPostRepository) Update(ctx context.Context, id string, update model.PostUpdate) (model.Post, error) {
	if err := validateObjectID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"updatedAt": now(time.Millisecond)}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Author != nil {
		set["author"] = *update.Author
	}

	var result model.Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&result)
	if err != nil {
		return model.Post{}, translateMongoError(err)
	}
	return result, nil
}

func (r *MongoPostRepository) Delete(ctx context.Context, id string) (model.Post, error) {
	if err := validateObjectID(id); err != nil {
		return model.Post{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var removed model.Post
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&removed)
	if err != nil {
		return model.Post{}, translateMongoError(err)
	}
	return removed, nil
}

func validateObjectID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return model.ErrInvalidID
	}
	return nil
}

func translateMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.ErrPostNotFound
	}
	return err
}
