package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
)

// LogRepository stores raw gateway messages in the logs collection.
type LogRepository struct {
	collection *mongo.Collection
}

// NewLogRepository creates a MongoDB log repository.
func NewLogRepository(db *mongo.Database) repositories.LogRepository {
	return &LogRepository{
		collection: db.Collection("logs"),
	}
}

// InsertMany implements repositories.LogRepository.
func (r *LogRepository) InsertMany(ctx context.Context, messages []entities.SpanMessage) error {
	if len(messages) == 0 {
		return nil
	}
	docs := make([]interface{}, len(messages))
	for i, msg := range messages {
		docs[i] = msg
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert log messages: %w", err)
	}
	return nil
}

// List implements repositories.LogRepository.
func (r *LogRepository) List(ctx context.Context, page, limit int) ([]entities.SpanMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.M{"received": -1}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []entities.SpanMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode logs: %w", err)
	}
	return messages, nil
}
