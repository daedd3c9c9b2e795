package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mds-backend/internal/models"
	"mds-backend/pkg/database"
	appErrors "mds-backend/pkg/errors"
)

const queryTimeout = 10 * time.Second

type DeviceRepository struct {
	collection *mongo.Collection
}

func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{
		collection: db.Collection(database.DevicesCollection),
	}
}

func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("device %s: %w", device.DeviceID, appErrors.ErrDuplicate)
		}
		return err
	}
	return nil
}

// FindByID looks a device up. An empty providerID matches any provider.
func (r *DeviceRepository) FindByID(ctx context.Context, deviceID, providerID string) (*models.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"device_id": deviceID}
	if providerID != "" {
		filter["provider_id"] = providerID
	}

	var device models.Device
	if err := r.collection.FindOne(ctx, filter).Decode(&device); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("device %s: %w", deviceID, appErrors.ErrNotFound)
		}
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) Exists(ctx context.Context, deviceID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"device_id": deviceID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *DeviceRepository) UpdateVehicleID(ctx context.Context, deviceID, providerID, vehicleID string) (*models.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"device_id": deviceID}
	if providerID != "" {
		filter["provider_id"] = providerID
	}
	update := bson.M{"$set": bson.M{"vehicle_id": vehicleID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var device models.Device
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&device); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("device %s: %w", deviceID, appErrors.ErrNotFound)
		}
		return nil, err
	}
	return &device, nil
}

// FindIDs returns every registered device id, optionally for one provider.
func (r *DeviceRepository) FindIDs(ctx context.Context, providerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{}
	if providerID != "" {
		filter["provider_id"] = providerID
	}
	opts := options.Find().
		SetProjection(bson.M{"device_id": 1}).
		SetSort(bson.D{{Key: "recorded", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var row struct {
			DeviceID string `bson:"device_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.DeviceID)
	}
	return ids, cursor.Err()
}
