package models

// Modality selects the event and state vocabulary a device reports with.
type Modality string

const (
	ModalityMicromobility Modality = "micromobility"
	ModalityTaxi          Modality = "taxi"
	ModalityTNC           Modality = "tnc"
)

type Device struct {
	DeviceID             string       `bson:"device_id" json:"device_id" validate:"required,uuid"`
	ProviderID           string       `bson:"provider_id" json:"provider_id" validate:"required,uuid"`
	VehicleID            string       `bson:"vehicle_id" json:"vehicle_id" validate:"required,max=255"`
	VehicleType          string       `bson:"vehicle_type" json:"vehicle_type" validate:"required,oneof=bicycle cargo_bicycle car scooter moped other"`
	PropulsionTypes      []string     `bson:"propulsion_types" json:"propulsion_types" validate:"required,min=1,dive,oneof=human electric_assist electric combustion combustion_diesel hybrid hydrogen_fuel_cell plug_in_hybrid"`
	Modality             Modality     `bson:"modality" json:"modality" validate:"omitempty,oneof=micromobility taxi tnc"`
	Year                 *int         `bson:"year,omitempty" json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Mfgr                 string       `bson:"mfgr,omitempty" json:"mfgr,omitempty" validate:"max=127"`
	Model                string       `bson:"model,omitempty" json:"model,omitempty" validate:"max=127"`
	AccessibilityOptions []string     `bson:"accessibility_options,omitempty" json:"accessibility_options,omitempty"`
	Recorded             int64        `bson:"recorded" json:"recorded"`
	Status               VehicleState `bson:"status,omitempty" json:"status,omitempty"`
}

// UpdateDeviceRequest is the only mutable part of a registration.
type UpdateDeviceRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required,max=255"`
}
