package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
)

// DeviceRepository stores the sensor registry in the devices collection,
// keyed by IMSI.
type DeviceRepository struct {
	collection *mongo.Collection
}

// NewDeviceRepository creates a MongoDB device repository.
func NewDeviceRepository(db *mongo.Database) repositories.DeviceRepository {
	return &DeviceRepository{
		collection: db.Collection("devices"),
	}
}

// GetByIMSI implements repositories.DeviceRepository. Unknown devices
// return (nil, nil): observing from an unregistered sensor is allowed, the
// record just carries no location.
func (r *DeviceRepository) GetByIMSI(ctx context.Context, imsi string) (*entities.Device, error) {
	var device entities.Device
	err := r.collection.FindOne(ctx, bson.M{"_id": imsi}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up device %s: %w", imsi, err)
	}
	return &device, nil
}

// Create implements repositories.DeviceRepository.
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("device with this imsi already exists")
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// List implements repositories.DeviceRepository.
func (r *DeviceRepository) List(ctx context.Context) ([]*entities.Device, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer cursor.Close(ctx)

	devices := []*entities.Device{}
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode devices: %w", err)
	}
	return devices, nil
}
