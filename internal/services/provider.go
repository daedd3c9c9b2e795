package services

import (
	"context"

	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

const (
	DefaultStatusChangeLimit int64 = 1000
	MaxStatusChangeLimit     int64 = 10000
)

// ProviderService serves the read-only regulator views.
type ProviderService struct {
	store Store
	views *viewReader
}

func NewProviderService(store Store, cache Cache) *ProviderService {
	return &ProviderService{
		store: store,
		views: &viewReader{store: store, cache: cache},
	}
}

// ListVehicles returns the current view of every device, or of one provider's devices
// when providerID is set.
func (s *ProviderService) ListVehicles(ctx context.Context, providerID string) ([]models.VehicleView, error) {
	ids, err := s.store.ReadDeviceIDs(ctx, providerID)
	if err != nil {
		logger.Error("Failed to list devices", zap.String("provider_id", providerID), zap.Error(err))
		return nil, appErrors.ServerError("failed to list vehicles")
	}

	views, err := s.views.readViews(ctx, ids)
	if err != nil {
		logger.Error("Failed to read vehicles", zap.Error(err))
		return nil, appErrors.ServerError("failed to read vehicles")
	}
	return views, nil
}

// StatusChanges returns stored events in timestamp order within the query window.
func (s *ProviderService) StatusChanges(ctx context.Context, query models.EventQuery) ([]*models.VehicleEvent, error) {
	if query.Start < 0 || query.End < 0 {
		return nil, appErrors.BadParam("invalid time range")
	}
	if query.Start > 0 && query.End > 0 && query.Start > query.End {
		return nil, appErrors.BadParam("start_time %d is after end_time %d", query.Start, query.End)
	}

	switch {
	case query.Limit <= 0:
		query.Limit = DefaultStatusChangeLimit
	case query.Limit > MaxStatusChangeLimit:
		query.Limit = MaxStatusChangeLimit
	}

	events, err := s.store.ReadEvents(ctx, query)
	if err != nil {
		logger.Error("Failed to read status changes", zap.Error(err))
		return nil, appErrors.ServerError("failed to read status changes")
	}
	if events == nil {
		events = []*models.VehicleEvent{}
	}
	return events, nil
}
