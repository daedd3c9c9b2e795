package models

type GPS struct {
	Lat        *float64 `bson:"lat" json:"lat"`
	Lng        *float64 `bson:"lng" json:"lng"`
	Altitude   *float64 `bson:"altitude,omitempty" json:"altitude,omitempty"`
	Heading    *float64 `bson:"heading,omitempty" json:"heading,omitempty"`
	Speed      *float64 `bson:"speed,omitempty" json:"speed,omitempty"`
	Accuracy   *float64 `bson:"accuracy,omitempty" json:"accuracy,omitempty"`
	Satellites *int     `bson:"satellites,omitempty" json:"satellites,omitempty"`
}

type Telemetry struct {
	DeviceID   string   `bson:"device_id" json:"device_id"`
	ProviderID string   `bson:"provider_id" json:"provider_id"`
	Timestamp  int64    `bson:"timestamp" json:"timestamp"`
	GPS        *GPS     `bson:"gps" json:"gps"`
	Charge     *float64 `bson:"charge,omitempty" json:"charge,omitempty"`
	Recorded   int64    `bson:"recorded" json:"recorded"`
}

// TelemetryKey identifies a telemetry sample; the store keeps one row per key.
type TelemetryKey struct {
	DeviceID  string
	Timestamp int64
}

func (t *Telemetry) Key() TelemetryKey {
	return TelemetryKey{DeviceID: t.DeviceID, Timestamp: t.Timestamp}
}
