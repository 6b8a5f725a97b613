package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
)

// ObservationRepository stores observations in the observations collection,
// keyed by file id. The ingestion pipeline's exactly-once guarantees lean
// on conditional updates here: creation is insert-if-absent and the
// classification attach never overwrites a set label with nil.
type ObservationRepository struct {
	collection *mongo.Collection
}

// NewObservationRepository creates a MongoDB observation repository.
func NewObservationRepository(db *mongo.Database) repositories.ObservationRepository {
	return &ObservationRepository{
		collection: db.Collection("observations"),
	}
}

// CreatePending implements repositories.ObservationRepository.
func (r *ObservationRepository) CreatePending(ctx context.Context, observation *entities.Observation) error {
	if observation == nil {
		return errors.New("observation cannot be nil")
	}

	doc := bson.M{
		"imsi":      observation.DeviceID,
		"value":     observation.Value,
		"timestamp": observation.Timestamp,
		"latitude":  observation.Latitude,
		"longitude": observation.Longitude,
		"file_path": observation.FilePath,
	}

	// $setOnInsert with upsert makes a retransmitted first frame a no-op
	// instead of resetting an observation that is further along.
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": observation.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending observation: %w", err)
	}
	return nil
}

// AttachArtifact implements repositories.ObservationRepository.
func (r *ObservationRepository) AttachArtifact(ctx context.Context, fileID, path string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": fileID},
		bson.M{"$set": bson.M{"file_path": path}},
	)
	if err != nil {
		return fmt.Errorf("failed to attach artifact: %w", err)
	}
	if result.MatchedCount == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// AttachClassification implements repositories.ObservationRepository.
func (r *ObservationRepository) AttachClassification(ctx context.Context, fileID string, result entities.ClassificationResult) error {
	now := time.Now().UTC()

	filter := bson.M{"_id": fileID}
	if result.Label == nil {
		// A no-match verdict may not clobber a label written earlier.
		filter["value.classification"] = nil
	}

	update := bson.M{"$set": bson.M{
		"value.classification": result.Label,
		"value.is_redlisted":   result.IsRedlisted,
		"classified_at":        now,
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to attach classification: %w", err)
	}
	if res.MatchedCount == 0 && result.Label != nil {
		return entities.ErrNotFound
	}
	return nil
}

// GetByID implements repositories.ObservationRepository.
func (r *ObservationRepository) GetByID(ctx context.Context, fileID string) (*entities.Observation, error) {
	var observation entities.Observation
	err := r.collection.FindOne(ctx, bson.M{"_id": fileID}).Decode(&observation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get observation %s: %w", fileID, err)
	}
	return &observation, nil
}

// List implements repositories.ObservationRepository.
func (r *ObservationRepository) List(ctx context.Context, from *time.Time) ([]*entities.Observation, error) {
	filter := bson.M{}
	if from != nil {
		filter["timestamp"] = bson.M{"$gte": *from}
	}
	opts := options.Find().SetSort(bson.M{"timestamp": -1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer cursor.Close(ctx)

	observations := []*entities.Observation{}
	if err := cursor.All(ctx, &observations); err != nil {
		return nil, fmt.Errorf("failed to decode observations: %w", err)
	}
	return observations, nil
}

// Create implements repositories.ObservationRepository.
func (r *ObservationRepository) Create(ctx context.Context, observation *entities.Observation) error {
	if observation == nil {
		return errors.New("observation cannot be nil")
	}
	if _, err := r.collection.InsertOne(ctx, observation); err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}
	return nil
}
