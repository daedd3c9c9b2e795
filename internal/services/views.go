package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// viewReader assembles composite vehicle views, preferring the cache and falling back to
// the store when the cache is missing an entry or unavailable.
type viewReader struct {
	store Store
	cache Cache
}

func (r *viewReader) readViews(ctx context.Context, deviceIDs []string) ([]models.VehicleView, error) {
	if len(deviceIDs) == 0 {
		return []models.VehicleView{}, nil
	}

	devices := make([]*models.Device, len(deviceIDs))
	events := make([]*models.VehicleEvent, len(deviceIDs))
	telemetry := make([]*models.Telemetry, len(deviceIDs))

	if r.cache != nil {
		if cached, err := r.cache.ReadDevices(ctx, deviceIDs); err != nil {
			logger.Warn("Cache device read failed", zap.Error(err))
		} else {
			devices = cached
		}
		if cached, err := r.cache.ReadEvents(ctx, deviceIDs); err != nil {
			logger.Warn("Cache event read failed", zap.Error(err))
		} else {
			events = cached
		}
		if cached, err := r.cache.ReadTelemetry(ctx, deviceIDs); err != nil {
			logger.Warn("Cache telemetry read failed", zap.Error(err))
		} else {
			telemetry = cached
		}
	}

	views := make([]models.VehicleView, 0, len(deviceIDs))
	for i, deviceID := range deviceIDs {
		device := devices[i]
		if device == nil {
			stored, err := r.store.ReadDevice(ctx, deviceID, "")
			if errors.Is(err, appErrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			device = stored
		}

		event := events[i]
		if event == nil {
			stored, err := r.store.ReadEvent(ctx, deviceID, nil)
			if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
				return nil, err
			}
			event = stored
		}

		views = append(views, models.NewVehicleView(*device, event, telemetry[i]))
	}
	return views, nil
}
