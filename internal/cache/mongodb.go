package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoDBKV implements KV on a MongoDB collection.
type MongoDBKV struct {
	collection *mongo.Collection
}

// NewMongoDBKV selects the question_cache collection.
// The client is owned by the storage layer and is not closed here.
func NewMongoDBKV(database *mongo.Database) (*MongoDBKV, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBKV{collection: database.Collection("question_cache")}, nil
}

func (s *MongoDBKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *MongoDBKV) Set(ctx context.Context, key string, value []byte) error {
	entry := mongoEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *MongoDBKV) Remove(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the storage layer owns the client.
func (s *MongoDBKV) Close() error {
	return nil
}
