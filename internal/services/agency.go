package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
	"mds-backend/internal/validation"
	appErrors "mds-backend/pkg/errors"
)

// AgencyService accepts registrations, events and telemetry from providers.
type AgencyService struct {
	store  Store
	cache  Cache
	stream Stream
	fanOut *FanOut
	views  *viewReader
	now    func() time.Time
}

func NewAgencyService(store Store, cache Cache, stream Stream, fanOut *FanOut) *AgencyService {
	if fanOut == nil {
		fanOut = NewFanOut()
	}
	return &AgencyService{
		store:  store,
		cache:  cache,
		stream: stream,
		fanOut: fanOut,
		views:  &viewReader{store: store, cache: cache},
		now:    time.Now,
	}
}

// SetClock replaces the time source used for recorded stamps.
func (s *AgencyService) SetClock(now func() time.Time) {
	s.now = now
}

// SubmitEventResult is returned for an accepted event.
type SubmitEventResult struct {
	DeviceID string              `json:"device_id"`
	State    models.VehicleState `json:"state"`
}

// TelemetryFailure describes one rejected telemetry item.
type TelemetryFailure struct {
	Index       int    `json:"index"`
	DeviceID    string `json:"device_id,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// TelemetryResult summarizes a telemetry batch. Success counts valid items, Unique the
// ones not stored before.
type TelemetryResult struct {
	Success    int                `json:"success"`
	Total      int                `json:"total"`
	Unique     int                `json:"unique"`
	Duplicates int                `json:"duplicates"`
	Failures   []TelemetryFailure `json:"failures"`
}

// RegisterDevice stores a new device for providerID and publishes it.
func (s *AgencyService) RegisterDevice(ctx context.Context, providerID string, device *models.Device) (*models.Device, error) {
	if device == nil {
		return nil, appErrors.MissingParam("missing device")
	}
	device.ProviderID = providerID
	if verr := validation.ValidateDevice(device); verr != nil {
		return nil, verr
	}

	device.Recorded = s.now().UnixMilli()
	device.Status = models.StateRemoved

	if err := s.store.WriteDevice(ctx, device); err != nil {
		if errors.Is(err, appErrors.ErrDuplicate) {
			return nil, appErrors.New(appErrors.CodeAlreadyRegistered, "device "+device.DeviceID+" already registered")
		}
		logger.Error("Failed to register device", zap.String("device_id", device.DeviceID), zap.Error(err))
		return nil, appErrors.ServerError("failed to register device")
	}

	s.fanOut.WriteDevice(ctx, device)
	return device, nil
}

// UpdateVehicle changes the vehicle_id of a registered device.
func (s *AgencyService) UpdateVehicle(ctx context.Context, providerID, deviceID string, update models.UpdateDeviceRequest) (*models.Device, error) {
	if verr := validation.ValidateStruct(&update); verr != nil {
		return nil, verr
	}

	device, err := s.store.UpdateDevice(ctx, deviceID, providerID, update)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.New(appErrors.CodeNotFound, "device "+deviceID+" not found")
		}
		logger.Error("Failed to update device", zap.String("device_id", deviceID), zap.Error(err))
		return nil, appErrors.ServerError("failed to update device")
	}

	s.refreshStatus(ctx, device)
	s.fanOut.WriteDevice(ctx, device)
	return device, nil
}

// GetVehicle returns the composite view of one of the provider's devices.
func (s *AgencyService) GetVehicle(ctx context.Context, providerID, deviceID string) (*models.VehicleView, error) {
	if _, err := s.readDevice(ctx, deviceID, providerID); err != nil {
		return nil, err
	}

	views, err := s.views.readViews(ctx, []string{deviceID})
	if err != nil {
		logger.Error("Failed to read vehicle", zap.String("device_id", deviceID), zap.Error(err))
		return nil, appErrors.ServerError("failed to read vehicle")
	}
	if len(views) == 0 {
		return nil, appErrors.New(appErrors.CodeNotFound, "device "+deviceID+" not found")
	}
	return &views[0], nil
}

// GetVehicles returns the composite views of every device of the provider.
func (s *AgencyService) GetVehicles(ctx context.Context, providerID string) ([]models.VehicleView, error) {
	ids, err := s.store.ReadDeviceIDs(ctx, providerID)
	if err != nil {
		logger.Error("Failed to list devices", zap.String("provider_id", providerID), zap.Error(err))
		return nil, appErrors.ServerError("failed to list vehicles")
	}

	views, err := s.views.readViews(ctx, ids)
	if err != nil {
		logger.Error("Failed to read vehicles", zap.String("provider_id", providerID), zap.Error(err))
		return nil, appErrors.ServerError("failed to read vehicles")
	}
	return views, nil
}

// SubmitEvent validates an event against the device's registration, writes it to the
// store of record and then fans it out. Once the store write succeeds the submission is
// accepted regardless of what happens to the cache or the stream.
func (s *AgencyService) SubmitEvent(ctx context.Context, providerID, deviceID string, event *models.VehicleEvent) (*SubmitEventResult, error) {
	if event == nil {
		return nil, appErrors.MissingParam("missing event")
	}

	device, err := s.store.ReadDevice(ctx, deviceID, providerID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Unregistered("device " + deviceID + " is not registered")
		}
		logger.Error("Failed to read device", zap.String("device_id", deviceID), zap.Error(err))
		return nil, appErrors.ServerError("failed to read device")
	}

	s.warmCache(ctx, device)

	recorded := s.now().UnixMilli()
	event.DeviceID = deviceID
	event.ProviderID = providerID
	event.Recorded = recorded
	event.TelemetryTimestamp = nil
	if event.Telemetry != nil {
		event.Telemetry.DeviceID = deviceID
		event.Telemetry.ProviderID = providerID
		event.Telemetry.Recorded = recorded
	}

	if verr := validation.ValidateEvent(device.Modality, event); verr != nil {
		s.reportEventError(ctx, providerID, event, verr)
		return nil, verr
	}
	if event.Telemetry != nil {
		if verr := validation.ValidateTelemetry(event.Telemetry); verr != nil {
			s.reportEventError(ctx, providerID, event, verr)
			return nil, verr
		}
	}

	// The event references its telemetry by timestamp, so telemetry is stored first.
	var newTelemetry []*models.Telemetry
	if event.Telemetry != nil {
		newTelemetry, err = s.store.WriteTelemetry(ctx, []*models.Telemetry{event.Telemetry})
		if err != nil {
			logger.Error("Failed to write event telemetry", zap.String("device_id", deviceID), zap.Error(err))
			return nil, appErrors.ServerError("failed to write telemetry")
		}
		ts := event.Telemetry.Timestamp
		event.TelemetryTimestamp = &ts
	}

	if err := s.store.WriteEvent(ctx, event); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrDuplicate):
			return nil, appErrors.Duplicate("duplicate event")
		case errors.Is(err, appErrors.ErrUnregistered), errors.Is(err, appErrors.ErrNotFound):
			return nil, appErrors.Unregistered("device " + deviceID + " is not registered")
		default:
			logger.Error("Failed to write event", zap.String("device_id", deviceID), zap.Error(err))
			return nil, appErrors.ServerError("failed to write event")
		}
	}

	s.fanOut.WriteEvent(ctx, event)
	s.fanOut.WriteTelemetry(ctx, newTelemetry)

	return &SubmitEventResult{DeviceID: deviceID, State: event.VehicleState}, nil
}

// SubmitTelemetry validates each item on its own. Valid items are stored in one write;
// invalid items are reported back and to the event error stream. A batch with no valid
// item is rejected as a whole.
func (s *AgencyService) SubmitTelemetry(ctx context.Context, providerID string, items []json.RawMessage) (*TelemetryResult, error) {
	if len(items) == 0 {
		return nil, appErrors.MissingParam("missing data")
	}

	recorded := s.now().UnixMilli()
	result := &TelemetryResult{Total: len(items), Failures: []TelemetryFailure{}}
	registered := make(map[string]bool)
	valid := make([]*models.Telemetry, 0, len(items))

	for i, raw := range items {
		var t models.Telemetry
		if err := json.Unmarshal(raw, &t); err != nil {
			s.rejectTelemetry(ctx, result, providerID, i, raw, nil, appErrors.BadParam("invalid telemetry: %s", err.Error()))
			continue
		}
		t.ProviderID = providerID
		t.Recorded = recorded

		if verr := validation.ValidateTelemetry(&t); verr != nil {
			s.rejectTelemetry(ctx, result, providerID, i, raw, &t, verr)
			continue
		}

		ok, found := registered[t.DeviceID]
		if !found {
			_, err := s.store.ReadDevice(ctx, t.DeviceID, providerID)
			switch {
			case err == nil:
				ok = true
			case errors.Is(err, appErrors.ErrNotFound):
				ok = false
			default:
				logger.Error("Failed to read device", zap.String("device_id", t.DeviceID), zap.Error(err))
				return nil, appErrors.ServerError("failed to read device")
			}
			registered[t.DeviceID] = ok
		}
		if !ok {
			s.rejectTelemetry(ctx, result, providerID, i, raw, &t, appErrors.Unregistered("device "+t.DeviceID+" is not registered"))
			continue
		}

		valid = append(valid, &t)
	}

	result.Success = len(valid)
	if len(valid) == 0 {
		return result, appErrors.BadParam("none of the provided telemetry was valid").WithDetails(result.Failures)
	}

	stored, err := s.store.WriteTelemetry(ctx, valid)
	if err != nil {
		logger.Error("Failed to write telemetry", zap.String("provider_id", providerID), zap.Error(err))
		return nil, appErrors.ServerError("failed to write telemetry")
	}
	result.Unique = len(stored)
	result.Duplicates = len(valid) - len(stored)

	s.fanOut.WriteTelemetry(ctx, stored)
	return result, nil
}

func (s *AgencyService) readDevice(ctx context.Context, deviceID, providerID string) (*models.Device, error) {
	device, err := s.store.ReadDevice(ctx, deviceID, providerID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.New(appErrors.CodeNotFound, "device "+deviceID+" not found")
		}
		logger.Error("Failed to read device", zap.String("device_id", deviceID), zap.Error(err))
		return nil, appErrors.ServerError("failed to read device")
	}
	return device, nil
}

// warmCache re-seeds the cache and stream with a device the cache has lost.
func (s *AgencyService) warmCache(ctx context.Context, device *models.Device) {
	if s.cache == nil {
		return
	}
	cached, err := s.cache.ReadDevice(ctx, device.DeviceID)
	if err != nil {
		logger.Warn("Cache device read failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		return
	}
	if cached == nil {
		logger.Info("Re-seeding device missing from cache", zap.String("device_id", device.DeviceID))
		s.fanOut.WriteDevice(ctx, device)
	}
}

// refreshStatus restores the status of a device re-read from the store, which does not
// keep it. The cached status wins; on a miss the latest stored event's vehicle_state is used.
func (s *AgencyService) refreshStatus(ctx context.Context, device *models.Device) {
	if s.cache != nil {
		cached, err := s.cache.ReadDevice(ctx, device.DeviceID)
		if err == nil && cached != nil {
			device.Status = cached.Status
			return
		}
		if err != nil {
			logger.Warn("Cache device read failed", zap.String("device_id", device.DeviceID), zap.Error(err))
		}
	}

	latest, err := s.store.ReadEvent(ctx, device.DeviceID, nil)
	if err != nil {
		if !errors.Is(err, appErrors.ErrNotFound) {
			logger.Warn("Failed to read latest event", zap.String("device_id", device.DeviceID), zap.Error(err))
		}
		return
	}
	device.Status = latest.VehicleState
}

func (s *AgencyService) reportEventError(ctx context.Context, providerID string, data interface{}, cause *appErrors.MDSError) {
	logger.Info("Rejected submission",
		zap.String("provider_id", providerID),
		zap.String("error", cause.Code),
		zap.String("error_description", cause.Description),
	)
	if s.stream == nil {
		return
	}

	eventError := &models.EventError{
		ProviderID:   providerID,
		Data:         data,
		Recorded:     s.now().UnixMilli(),
		ErrorMessage: cause.Error(),
	}
	if err := s.stream.WriteEventError(ctx, eventError); err != nil {
		logger.Warn("Failed to write event error to stream", zap.String("provider_id", providerID), zap.Error(err))
	}
}

func (s *AgencyService) rejectTelemetry(ctx context.Context, result *TelemetryResult, providerID string, index int, raw json.RawMessage, t *models.Telemetry, cause *appErrors.MDSError) {
	failure := TelemetryFailure{
		Index:       index,
		Error:       cause.Code,
		Description: cause.Description,
	}
	if t != nil {
		failure.DeviceID = t.DeviceID
		failure.Timestamp = t.Timestamp
	}
	result.Failures = append(result.Failures, failure)
	s.reportEventError(ctx, providerID, raw, cause)
}
