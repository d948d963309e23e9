package archive

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"schack-online/pkg/logger"
)

const gamesCollection = "games"

// MongoStore writes records to the games collection
type MongoStore struct {
	client *mongo.Client
	games  *mongo.Collection
}

// NewMongoStore connects to uri and uses database db
func NewMongoStore(ctx context.Context, uri, db string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connection error: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}

	logger.Archive.Info("Connected to MongoDB database %s", db)
	return &MongoStore{
		client: client,
		games:  client.Database(db).Collection(gamesCollection),
	}, nil
}

// Save inserts r as a document keyed by its id
func (s *MongoStore) Save(ctx context.Context, r Record) error {
	if _, err := s.games.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to insert game %s: %w", r.ID, err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
