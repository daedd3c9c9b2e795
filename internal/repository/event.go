package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mds-backend/internal/models"
	"mds-backend/pkg/database"
	appErrors "mds-backend/pkg/errors"
)

type EventRepository struct {
	collection *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{
		collection: db.Collection(database.EventsCollection),
	}
}

// Create inserts an event. The unique (device_id, timestamp) index rejects resubmissions.
func (r *EventRepository) Create(ctx context.Context, event *models.VehicleEvent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("event %s@%d: %w", event.DeviceID, event.Timestamp, appErrors.ErrDuplicate)
		}
		return err
	}
	return nil
}

// FindOne returns the event at timestamp, or the latest event when timestamp is nil.
func (r *EventRepository) FindOne(ctx context.Context, deviceID string, timestamp *int64) (*models.VehicleEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"device_id": deviceID}
	if timestamp != nil {
		filter["timestamp"] = *timestamp
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var event models.VehicleEvent
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("event for %s: %w", deviceID, appErrors.ErrNotFound)
		}
		return nil, err
	}
	return &event, nil
}

// Find returns events in ascending timestamp order.
func (r *EventRepository) Find(ctx context.Context, query models.EventQuery) ([]*models.VehicleEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{}
	if query.ProviderID != "" {
		filter["provider_id"] = query.ProviderID
	}
	if query.DeviceID != "" {
		filter["device_id"] = query.DeviceID
	}
	window := bson.M{}
	if query.Start > 0 {
		window["$gte"] = query.Start
	}
	if query.End > 0 {
		window["$lte"] = query.End
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if query.Limit > 0 {
		opts.SetLimit(query.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []*models.VehicleEvent{}
	for cursor.Next(ctx) {
		var event models.VehicleEvent
		if err := cursor.Decode(&event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, cursor.Err()
}
