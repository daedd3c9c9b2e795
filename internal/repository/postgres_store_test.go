package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

const (
	testProviderID = "5f7114d1-4091-46ee-b492-e55875f7de00"
	testDeviceID   = "ec551174-f324-4251-bfed-28d9f3f473fc"
	otherDeviceID  = "a7c4a3f1-2d3b-4e5f-8a9b-0c1d2e3f4a5b"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newDevice(id string) *models.Device {
	year := 2022
	return &models.Device{
		DeviceID:        id,
		ProviderID:      testProviderID,
		VehicleID:       "vehicle-" + id[:4],
		VehicleType:     "scooter",
		PropulsionTypes: []string{"electric"},
		Modality:        models.ModalityMicromobility,
		Year:            &year,
		Recorded:        1700000000000,
	}
}

func newTelemetry(deviceID string, ts int64) *models.Telemetry {
	lat, lng := 34.05, -118.24
	return &models.Telemetry{
		DeviceID:   deviceID,
		ProviderID: testProviderID,
		Timestamp:  ts,
		GPS:        &models.GPS{Lat: &lat, Lng: &lng},
		Recorded:   ts,
	}
}

func TestPostgresStore_Devices(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteDevice(ctx, newDevice(testDeviceID)))

	err := store.WriteDevice(ctx, newDevice(testDeviceID))
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)

	device, err := store.ReadDevice(ctx, testDeviceID, testProviderID)
	require.NoError(t, err)
	assert.Equal(t, []string{"electric"}, device.PropulsionTypes)
	require.NotNil(t, device.Year)
	assert.Equal(t, 2022, *device.Year)

	_, err = store.ReadDevice(ctx, testDeviceID, "another-provider")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	updated, err := store.UpdateDevice(ctx, testDeviceID, testProviderID, models.UpdateDeviceRequest{VehicleID: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.VehicleID)

	_, err = store.UpdateDevice(ctx, otherDeviceID, "", models.UpdateDeviceRequest{VehicleID: "x"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, store.WriteDevice(ctx, newDevice(otherDeviceID)))
	ids, err := store.ReadDeviceIDs(ctx, testProviderID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{testDeviceID, otherDeviceID}, ids)

	ids, err = store.ReadDeviceIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostgresStore_Events(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteDevice(ctx, newDevice(testDeviceID)))

	tripID := "b2b7f3a0-6c1e-4d2a-9a57-1c3f6b8e9d10"
	tripState := models.TripState("on_trip")
	event := &models.VehicleEvent{
		DeviceID:     testDeviceID,
		ProviderID:   testProviderID,
		EventTypes:   []models.EventType{models.EventTripStart},
		VehicleState: models.StateOnTrip,
		TripID:       &tripID,
		TripState:    &tripState,
		Timestamp:    1700000000000,
		Recorded:     1700000000500,
	}
	require.NoError(t, store.WriteEvent(ctx, event))

	err := store.WriteEvent(ctx, event)
	assert.ErrorIs(t, err, appErrors.ErrDuplicate)

	unregistered := *event
	unregistered.DeviceID = otherDeviceID
	assert.ErrorIs(t, store.WriteEvent(ctx, &unregistered), appErrors.ErrUnregistered)

	later := *event
	later.EventTypes = []models.EventType{models.EventTripEnd}
	later.VehicleState = models.StateAvailable
	later.TripState = nil
	later.Timestamp = 1700000060000
	require.NoError(t, store.WriteEvent(ctx, &later))

	latest, err := store.ReadEvent(ctx, testDeviceID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateAvailable, latest.VehicleState)
	assert.Nil(t, latest.TripState)

	ts := int64(1700000000000)
	first, err := store.ReadEvent(ctx, testDeviceID, &ts)
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventTripStart}, first.EventTypes)
	require.NotNil(t, first.TripState)
	assert.Equal(t, tripState, *first.TripState)

	_, err = store.ReadEvent(ctx, otherDeviceID, nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	events, err := store.ReadEvents(ctx, models.EventQuery{ProviderID: testProviderID, Start: 1700000000001})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1700000060000), events[0].Timestamp)

	events, err = store.ReadEvents(ctx, models.EventQuery{DeviceID: testDeviceID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1700000000000), events[0].Timestamp)
}

func TestPostgresStore_WriteTelemetry(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	recorded, err := store.WriteTelemetry(ctx, []*models.Telemetry{
		newTelemetry(testDeviceID, 1700000000000),
		newTelemetry(testDeviceID, 1700000001000),
		newTelemetry(testDeviceID, 1700000001000),
	})
	require.NoError(t, err)
	assert.Len(t, recorded, 2)

	recorded, err = store.WriteTelemetry(ctx, []*models.Telemetry{
		newTelemetry(testDeviceID, 1700000001000),
		newTelemetry(otherDeviceID, 1700000001000),
	})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, otherDeviceID, recorded[0].DeviceID)

	recorded, err = store.WriteTelemetry(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

func TestPostgresStore_Health(t *testing.T) {
	store := setupPostgresStore(t)
	assert.NoError(t, store.Health(context.Background()))
}
