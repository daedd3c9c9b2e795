package services

import (
	"context"

	"mds-backend/internal/models"
)

// Store is the store of record. Adapters wrap pkg/errors sentinels: ErrNotFound for unknown
// records, ErrDuplicate for (device_id, timestamp) collisions and ErrUnregistered for events
// of unknown devices. An empty providerID matches every provider.
type Store interface {
	ReadDevice(ctx context.Context, deviceID, providerID string) (*models.Device, error)
	WriteDevice(ctx context.Context, device *models.Device) error
	UpdateDevice(ctx context.Context, deviceID, providerID string, update models.UpdateDeviceRequest) (*models.Device, error)
	ReadDeviceIDs(ctx context.Context, providerID string) ([]string, error)

	// ReadEvent returns the event at timestamp, or the latest one when timestamp is nil.
	ReadEvent(ctx context.Context, deviceID string, timestamp *int64) (*models.VehicleEvent, error)
	ReadEvents(ctx context.Context, query models.EventQuery) ([]*models.VehicleEvent, error)
	WriteEvent(ctx context.Context, event *models.VehicleEvent) error

	// WriteTelemetry returns only the rows that were not stored before.
	WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) ([]*models.Telemetry, error)

	Health(ctx context.Context) error
}

// Cache is the fast-read copy of current vehicle state. Reads return nil on a miss; the
// multi-reads return slices aligned with the ids, nil where missing.
type Cache interface {
	Sink
	ReadDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ReadDevices(ctx context.Context, deviceIDs []string) ([]*models.Device, error)
	ReadEvent(ctx context.Context, deviceID string) (*models.VehicleEvent, error)
	ReadEvents(ctx context.Context, deviceIDs []string) ([]*models.VehicleEvent, error)
	ReadTelemetry(ctx context.Context, deviceIDs []string) ([]*models.Telemetry, error)
	Health(ctx context.Context) error
}

// Stream is the append-only log. Rejected submissions go to WriteEventError.
type Stream interface {
	Sink
	WriteEventError(ctx context.Context, eventError *models.EventError) error
}

// Sink receives accepted records after they are durable.
type Sink interface {
	WriteDevice(ctx context.Context, device *models.Device) error
	WriteEvent(ctx context.Context, event *models.VehicleEvent) error
	WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error
}
