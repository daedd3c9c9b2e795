package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mds-backend/internal/models"
)

type panickingSink struct{}

func (panickingSink) WriteDevice(context.Context, *models.Device) error         { panic("boom") }
func (panickingSink) WriteEvent(context.Context, *models.VehicleEvent) error    { panic("boom") }
func (panickingSink) WriteTelemetry(context.Context, []*models.Telemetry) error { panic("boom") }

func TestFanOut_RecoversPanickingSink(t *testing.T) {
	healthy := &recordingSink{}
	fanOut := NewFanOut().Add("broken", panickingSink{}).Add("healthy", healthy).Add("absent", nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		fanOut.WriteDevice(ctx, &models.Device{DeviceID: deviceID})
		fanOut.WriteEvent(ctx, &models.VehicleEvent{DeviceID: deviceID})
	})

	require.Len(t, healthy.devices, 1)
	require.Len(t, healthy.events, 1)
	assert.Equal(t, map[string]int64{"broken": 2, "healthy": 0}, fanOut.Failures())
}

func TestFanOut_SkipsEmptyTelemetry(t *testing.T) {
	fanOut := NewFanOut().Add("broken", panickingSink{})

	fanOut.WriteTelemetry(context.Background(), nil)
	assert.Equal(t, int64(0), fanOut.Failures()["broken"])

	fanOut.WriteTelemetry(context.Background(), []*models.Telemetry{{DeviceID: deviceID}})
	assert.Equal(t, int64(1), fanOut.Failures()["broken"])
}

func TestFanOut_NoSinks(t *testing.T) {
	fanOut := NewFanOut()
	assert.NotPanics(t, func() {
		fanOut.WriteDevice(context.Background(), &models.Device{DeviceID: deviceID})
	})
	assert.Empty(t, fanOut.Failures())
}
