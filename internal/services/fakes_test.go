package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// memStore is an in-memory Store with the same duplicate and registration rules as the
// real adapters.
type memStore struct {
	mu        sync.Mutex
	devices   map[string]*models.Device
	events    map[models.TelemetryKey]*models.VehicleEvent
	telemetry map[models.TelemetryKey]*models.Telemetry
	healthErr error
}

func newMemStore() *memStore {
	return &memStore{
		devices:   make(map[string]*models.Device),
		events:    make(map[models.TelemetryKey]*models.VehicleEvent),
		telemetry: make(map[models.TelemetryKey]*models.Telemetry),
	}
}

func (m *memStore) ReadDevice(_ context.Context, deviceID, providerID string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok || (providerID != "" && d.ProviderID != providerID) {
		return nil, appErrors.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) WriteDevice(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[device.DeviceID]; ok {
		return appErrors.ErrDuplicate
	}
	cp := *device
	m.devices[device.DeviceID] = &cp
	return nil
}

func (m *memStore) UpdateDevice(_ context.Context, deviceID, providerID string, update models.UpdateDeviceRequest) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok || (providerID != "" && d.ProviderID != providerID) {
		return nil, appErrors.ErrNotFound
	}
	d.VehicleID = update.VehicleID
	cp := *d
	return &cp, nil
}

func (m *memStore) ReadDeviceIDs(_ context.Context, providerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, d := range m.devices {
		if providerID == "" || d.ProviderID == providerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) ReadEvent(_ context.Context, deviceID string, timestamp *int64) (*models.VehicleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.VehicleEvent
	for key, e := range m.events {
		if key.DeviceID != deviceID {
			continue
		}
		if timestamp != nil && key.Timestamp != *timestamp {
			continue
		}
		if found == nil || e.Timestamp > found.Timestamp {
			found = e
		}
	}
	if found == nil {
		return nil, appErrors.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *memStore) ReadEvents(_ context.Context, query models.EventQuery) ([]*models.VehicleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.VehicleEvent
	for _, e := range m.events {
		if query.ProviderID != "" && e.ProviderID != query.ProviderID {
			continue
		}
		if query.Start > 0 && e.Timestamp < query.Start {
			continue
		}
		if query.End > 0 && e.Timestamp > query.End {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if query.Limit > 0 && int64(len(out)) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (m *memStore) WriteEvent(_ context.Context, event *models.VehicleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[event.DeviceID]; !ok {
		return appErrors.ErrUnregistered
	}
	key := models.TelemetryKey{DeviceID: event.DeviceID, Timestamp: event.Timestamp}
	if _, ok := m.events[key]; ok {
		return appErrors.ErrDuplicate
	}
	cp := *event
	cp.Telemetry = nil
	m.events[key] = &cp
	return nil
}

func (m *memStore) WriteTelemetry(_ context.Context, telemetry []*models.Telemetry) ([]*models.Telemetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fresh []*models.Telemetry
	for _, t := range telemetry {
		if _, ok := m.telemetry[t.Key()]; ok {
			continue
		}
		m.telemetry[t.Key()] = t
		fresh = append(fresh, t)
	}
	return fresh, nil
}

func (m *memStore) Health(context.Context) error {
	return m.healthErr
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// recordingSink remembers everything written to it.
type recordingSink struct {
	mu          sync.Mutex
	devices     []*models.Device
	events      []*models.VehicleEvent
	telemetry   []*models.Telemetry
	eventErrors []*models.EventError
}

func (r *recordingSink) WriteDevice(_ context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, device)
	return nil
}

func (r *recordingSink) WriteEvent(_ context.Context, event *models.VehicleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) WriteTelemetry(_ context.Context, telemetry []*models.Telemetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.telemetry = append(r.telemetry, telemetry...)
	return nil
}

func (r *recordingSink) WriteEventError(_ context.Context, eventError *models.EventError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventErrors = append(r.eventErrors, eventError)
	return nil
}

func (r *recordingSink) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.eventErrors)
}

// MockCache is a testify mock of the Cache interface.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) WriteDevice(ctx context.Context, device *models.Device) error {
	return m.Called(ctx, device).Error(0)
}

func (m *MockCache) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockCache) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error {
	return m.Called(ctx, telemetry).Error(0)
}

func (m *MockCache) ReadDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}

func (m *MockCache) ReadDevices(ctx context.Context, deviceIDs []string) ([]*models.Device, error) {
	args := m.Called(ctx, deviceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Device), args.Error(1)
}

func (m *MockCache) ReadEvent(ctx context.Context, deviceID string) (*models.VehicleEvent, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VehicleEvent), args.Error(1)
}

func (m *MockCache) ReadEvents(ctx context.Context, deviceIDs []string) ([]*models.VehicleEvent, error) {
	args := m.Called(ctx, deviceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VehicleEvent), args.Error(1)
}

func (m *MockCache) ReadTelemetry(ctx context.Context, deviceIDs []string) ([]*models.Telemetry, error) {
	args := m.Called(ctx, deviceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Telemetry), args.Error(1)
}

func (m *MockCache) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockStream is a testify mock of the Stream interface.
type MockStream struct {
	mock.Mock
}

func (m *MockStream) WriteDevice(ctx context.Context, device *models.Device) error {
	return m.Called(ctx, device).Error(0)
}

func (m *MockStream) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockStream) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error {
	return m.Called(ctx, telemetry).Error(0)
}

func (m *MockStream) WriteEventError(ctx context.Context, eventError *models.EventError) error {
	return m.Called(ctx, eventError).Error(0)
}

var errUnavailable = errors.New("connection refused")
