package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// MongoStore is the MongoDB store of record.
type MongoStore struct {
	db        *mongo.Database
	devices   *DeviceRepository
	events    *EventRepository
	telemetry *TelemetryRepository
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:        db,
		devices:   NewDeviceRepository(db),
		events:    NewEventRepository(db),
		telemetry: NewTelemetryRepository(db),
	}
}

func (s *MongoStore) ReadDevice(ctx context.Context, deviceID, providerID string) (*models.Device, error) {
	return s.devices.FindByID(ctx, deviceID, providerID)
}

func (s *MongoStore) WriteDevice(ctx context.Context, device *models.Device) error {
	return s.devices.Create(ctx, device)
}

func (s *MongoStore) UpdateDevice(ctx context.Context, deviceID, providerID string, update models.UpdateDeviceRequest) (*models.Device, error) {
	return s.devices.UpdateVehicleID(ctx, deviceID, providerID, update.VehicleID)
}

func (s *MongoStore) ReadDeviceIDs(ctx context.Context, providerID string) ([]string, error) {
	return s.devices.FindIDs(ctx, providerID)
}

func (s *MongoStore) ReadEvent(ctx context.Context, deviceID string, timestamp *int64) (*models.VehicleEvent, error) {
	return s.events.FindOne(ctx, deviceID, timestamp)
}

func (s *MongoStore) ReadEvents(ctx context.Context, query models.EventQuery) ([]*models.VehicleEvent, error) {
	return s.events.Find(ctx, query)
}

// WriteEvent refuses events for devices that were never registered.
func (s *MongoStore) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	exists, err := s.devices.Exists(ctx, event.DeviceID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("device %s: %w", event.DeviceID, appErrors.ErrUnregistered)
	}
	return s.events.Create(ctx, event)
}

func (s *MongoStore) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) ([]*models.Telemetry, error) {
	return s.telemetry.InsertNew(ctx, telemetry)
}

func (s *MongoStore) Health(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}
