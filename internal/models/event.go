package models

type EventType string

type VehicleState string

type TripState string

const (
	StateAvailable      VehicleState = "available"
	StateElsewhere      VehicleState = "elsewhere"
	StateNonOperational VehicleState = "non_operational"
	StateOnTrip         VehicleState = "on_trip"
	StateRemoved        VehicleState = "removed"
	StateReserved       VehicleState = "reserved"
	StateStopped        VehicleState = "stopped"
	StateUnknown        VehicleState = "unknown"
)

const (
	EventTripStart             EventType = "trip_start"
	EventTripEnd               EventType = "trip_end"
	EventTripEnterJurisdiction EventType = "trip_enter_jurisdiction"
	EventTripLeaveJurisdiction EventType = "trip_leave_jurisdiction"
	EventProviderDropOff       EventType = "provider_drop_off"
	EventDecommissioned        EventType = "decommissioned"
)

// VehicleEvent is one state-transition report. Telemetry embedded in a submission is
// persisted separately and linked through TelemetryTimestamp.
type VehicleEvent struct {
	DeviceID           string       `bson:"device_id" json:"device_id"`
	ProviderID         string       `bson:"provider_id" json:"provider_id"`
	EventTypes         []EventType  `bson:"event_types" json:"event_types"`
	VehicleState       VehicleState `bson:"vehicle_state" json:"vehicle_state"`
	TripID             *string      `bson:"trip_id,omitempty" json:"trip_id,omitempty"`
	TripState          *TripState   `bson:"trip_state,omitempty" json:"trip_state,omitempty"`
	Telemetry          *Telemetry   `bson:"-" json:"telemetry,omitempty"`
	Timestamp          int64        `bson:"timestamp" json:"timestamp"`
	TelemetryTimestamp *int64       `bson:"telemetry_timestamp,omitempty" json:"telemetry_timestamp,omitempty"`
	Recorded           int64        `bson:"recorded" json:"recorded"`
}

// HasEventType reports whether any of types is among the event's types.
func (e *VehicleEvent) HasEventType(types ...EventType) bool {
	for _, have := range e.EventTypes {
		for _, want := range types {
			if have == want {
				return true
			}
		}
	}
	return false
}

// EventError is an audit record of a rejected submission.
type EventError struct {
	ProviderID   string      `json:"provider_id"`
	Data         interface{} `json:"data"`
	Recorded     int64       `json:"recorded"`
	ErrorMessage string      `json:"error_message"`
}

// EventQuery filters events read from the store of record.
type EventQuery struct {
	ProviderID string
	DeviceID   string
	Start      int64
	End        int64
	Limit      int64
}
