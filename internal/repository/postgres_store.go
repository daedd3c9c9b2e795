package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// PostgresStore is the relational store of record.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables and unique indexes the store depends on.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DeviceRow{}, &EventRow{}, &TelemetryRow{}); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadDevice(ctx context.Context, deviceID, providerID string) (*models.Device, error) {
	query := s.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if providerID != "" {
		query = query.Where("provider_id = ?", providerID)
	}

	var row DeviceRow
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device %s: %w", deviceID, appErrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return row.toEntity(), nil
}

func (s *PostgresStore) WriteDevice(ctx context.Context, device *models.Device) error {
	if err := s.db.WithContext(ctx).Create(toDeviceRow(device)).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("device %s: %w", device.DeviceID, appErrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDevice(ctx context.Context, deviceID, providerID string, update models.UpdateDeviceRequest) (*models.Device, error) {
	query := s.db.WithContext(ctx).Model(&DeviceRow{}).Where("device_id = ?", deviceID)
	if providerID != "" {
		query = query.Where("provider_id = ?", providerID)
	}

	result := query.Update("vehicle_id", update.VehicleID)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("device %s: %w", deviceID, appErrors.ErrNotFound)
	}
	return s.ReadDevice(ctx, deviceID, providerID)
}

func (s *PostgresStore) ReadDeviceIDs(ctx context.Context, providerID string) ([]string, error) {
	query := s.db.WithContext(ctx).Model(&DeviceRow{}).Order("recorded")
	if providerID != "" {
		query = query.Where("provider_id = ?", providerID)
	}

	ids := []string{}
	if err := query.Pluck("device_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ReadEvent(ctx context.Context, deviceID string, timestamp *int64) (*models.VehicleEvent, error) {
	query := s.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if timestamp != nil {
		query = query.Where("timestamp = ?", *timestamp)
	}

	var row EventRow
	err := query.Order("timestamp DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("event for %s: %w", deviceID, appErrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return row.toEntity(), nil
}

func (s *PostgresStore) ReadEvents(ctx context.Context, q models.EventQuery) ([]*models.VehicleEvent, error) {
	query := s.db.WithContext(ctx).Order("timestamp ASC")
	if q.ProviderID != "" {
		query = query.Where("provider_id = ?", q.ProviderID)
	}
	if q.DeviceID != "" {
		query = query.Where("device_id = ?", q.DeviceID)
	}
	if q.Start > 0 {
		query = query.Where("timestamp >= ?", q.Start)
	}
	if q.End > 0 {
		query = query.Where("timestamp <= ?", q.End)
	}
	if q.Limit > 0 {
		query = query.Limit(int(q.Limit))
	}

	var rows []EventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*models.VehicleEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// WriteEvent refuses events for devices that were never registered.
func (s *PostgresStore) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&DeviceRow{}).Where("device_id = ?", event.DeviceID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check device: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("device %s: %w", event.DeviceID, appErrors.ErrUnregistered)
	}

	if err := s.db.WithContext(ctx).Create(toEventRow(event)).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("event %s@%d: %w", event.DeviceID, event.Timestamp, appErrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// WriteTelemetry stores the samples not seen before and returns them. Samples repeated
// within the batch or already stored are skipped.
func (s *PostgresStore) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) ([]*models.Telemetry, error) {
	if len(telemetry) == 0 {
		return []*models.Telemetry{}, nil
	}

	deviceIDs := make([]string, 0, len(telemetry))
	seenDevice := make(map[string]bool)
	for _, t := range telemetry {
		if !seenDevice[t.DeviceID] {
			seenDevice[t.DeviceID] = true
			deviceIDs = append(deviceIDs, t.DeviceID)
		}
	}

	var existing []TelemetryRow
	if err := s.db.WithContext(ctx).
		Select("device_id", "timestamp").
		Where("device_id IN ?", deviceIDs).
		Where("timestamp IN ?", timestamps(telemetry)).
		Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check telemetry: %w", err)
	}

	stored := make(map[models.TelemetryKey]bool, len(existing))
	for _, row := range existing {
		stored[models.TelemetryKey{DeviceID: row.DeviceID, Timestamp: row.Timestamp}] = true
	}

	recorded := make([]*models.Telemetry, 0, len(telemetry))
	rows := make([]*TelemetryRow, 0, len(telemetry))
	for _, t := range telemetry {
		key := t.Key()
		if stored[key] {
			continue
		}
		stored[key] = true
		recorded = append(recorded, t)
		rows = append(rows, toTelemetryRow(t))
	}
	if len(rows) == 0 {
		return recorded, nil
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 500).Error; err != nil {
		return nil, fmt.Errorf("failed to write telemetry: %w", err)
	}
	return recorded, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func timestamps(telemetry []*models.Telemetry) []int64 {
	out := make([]int64, len(telemetry))
	for i, t := range telemetry {
		out[i] = t.Timestamp
	}
	return out
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
