package repository

import (
	"mds-backend/internal/models"
)

// DeviceRow is the relational form of models.Device.
type DeviceRow struct {
	DeviceID             string   `gorm:"type:varchar(36);primaryKey"`
	ProviderID           string   `gorm:"type:varchar(36);not null;index"`
	VehicleID            string   `gorm:"type:varchar(255);not null"`
	VehicleType          string   `gorm:"type:varchar(31);not null"`
	PropulsionTypes      []string `gorm:"serializer:json"`
	Modality             string   `gorm:"type:varchar(31);not null;default:'micromobility'"`
	Year                 *int
	Mfgr                 string   `gorm:"type:varchar(127)"`
	Model                string   `gorm:"type:varchar(127)"`
	AccessibilityOptions []string `gorm:"serializer:json"`
	Recorded             int64    `gorm:"not null;index"`
}

func (DeviceRow) TableName() string {
	return "devices"
}

type EventRow struct {
	ID                 uint     `gorm:"primaryKey"`
	DeviceID           string   `gorm:"type:varchar(36);not null;uniqueIndex:idx_events_device_timestamp"`
	Timestamp          int64    `gorm:"not null;uniqueIndex:idx_events_device_timestamp;index"`
	ProviderID         string   `gorm:"type:varchar(36);not null;index"`
	EventTypes         []string `gorm:"serializer:json"`
	VehicleState       string   `gorm:"type:varchar(31);not null"`
	TripID             *string  `gorm:"type:varchar(36)"`
	TripState          *string  `gorm:"type:varchar(31)"`
	TelemetryTimestamp *int64
	Recorded           int64 `gorm:"not null"`
}

func (EventRow) TableName() string {
	return "events"
}

type TelemetryRow struct {
	ID         uint   `gorm:"primaryKey"`
	DeviceID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_telemetry_device_timestamp"`
	Timestamp  int64  `gorm:"not null;uniqueIndex:idx_telemetry_device_timestamp"`
	ProviderID string `gorm:"type:varchar(36);not null"`
	Lat        float64
	Lng        float64
	Altitude   *float64
	Heading    *float64
	Speed      *float64
	Accuracy   *float64
	Satellites *int
	Charge     *float64
	Recorded   int64 `gorm:"not null"`
}

func (TelemetryRow) TableName() string {
	return "telemetry"
}

func toDeviceRow(d *models.Device) *DeviceRow {
	return &DeviceRow{
		DeviceID:             d.DeviceID,
		ProviderID:           d.ProviderID,
		VehicleID:            d.VehicleID,
		VehicleType:          d.VehicleType,
		PropulsionTypes:      d.PropulsionTypes,
		Modality:             string(d.Modality),
		Year:                 d.Year,
		Mfgr:                 d.Mfgr,
		Model:                d.Model,
		AccessibilityOptions: d.AccessibilityOptions,
		Recorded:             d.Recorded,
	}
}

func (r *DeviceRow) toEntity() *models.Device {
	return &models.Device{
		DeviceID:             r.DeviceID,
		ProviderID:           r.ProviderID,
		VehicleID:            r.VehicleID,
		VehicleType:          r.VehicleType,
		PropulsionTypes:      r.PropulsionTypes,
		Modality:             models.Modality(r.Modality),
		Year:                 r.Year,
		Mfgr:                 r.Mfgr,
		Model:                r.Model,
		AccessibilityOptions: r.AccessibilityOptions,
		Recorded:             r.Recorded,
	}
}

func toEventRow(e *models.VehicleEvent) *EventRow {
	row := &EventRow{
		DeviceID:           e.DeviceID,
		Timestamp:          e.Timestamp,
		ProviderID:         e.ProviderID,
		EventTypes:         make([]string, len(e.EventTypes)),
		VehicleState:       string(e.VehicleState),
		TripID:             e.TripID,
		TelemetryTimestamp: e.TelemetryTimestamp,
		Recorded:           e.Recorded,
	}
	for i, eventType := range e.EventTypes {
		row.EventTypes[i] = string(eventType)
	}
	if e.TripState != nil {
		state := string(*e.TripState)
		row.TripState = &state
	}
	return row
}

func (r *EventRow) toEntity() *models.VehicleEvent {
	event := &models.VehicleEvent{
		DeviceID:           r.DeviceID,
		ProviderID:         r.ProviderID,
		EventTypes:         make([]models.EventType, len(r.EventTypes)),
		VehicleState:       models.VehicleState(r.VehicleState),
		TripID:             r.TripID,
		Timestamp:          r.Timestamp,
		TelemetryTimestamp: r.TelemetryTimestamp,
		Recorded:           r.Recorded,
	}
	for i, eventType := range r.EventTypes {
		event.EventTypes[i] = models.EventType(eventType)
	}
	if r.TripState != nil {
		state := models.TripState(*r.TripState)
		event.TripState = &state
	}
	return event
}

// toTelemetryRow expects validated telemetry; a missing fix is stored as 0,0.
func toTelemetryRow(t *models.Telemetry) *TelemetryRow {
	row := &TelemetryRow{
		DeviceID:   t.DeviceID,
		Timestamp:  t.Timestamp,
		ProviderID: t.ProviderID,
		Charge:     t.Charge,
		Recorded:   t.Recorded,
	}
	if gps := t.GPS; gps != nil {
		if gps.Lat != nil {
			row.Lat = *gps.Lat
		}
		if gps.Lng != nil {
			row.Lng = *gps.Lng
		}
		row.Altitude = gps.Altitude
		row.Heading = gps.Heading
		row.Speed = gps.Speed
		row.Accuracy = gps.Accuracy
		row.Satellites = gps.Satellites
	}
	return row
}
