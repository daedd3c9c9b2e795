package models

// VehicleView is the externally visible vehicle: registration merged with the latest
// event and telemetry.
type VehicleView struct {
	Device
	State      VehicleState `json:"state"`
	PrevEvents []EventType  `json:"prev_events"`
	Updated    *int64       `json:"updated,omitempty"`
	GPS        *GPS         `json:"gps,omitempty"`
}

// NewVehicleView builds the composite view. A device without any event reads as removed.
func NewVehicleView(device Device, event *VehicleEvent, telemetry *Telemetry) VehicleView {
	view := VehicleView{
		Device:     device,
		State:      StateRemoved,
		PrevEvents: []EventType{EventDecommissioned},
	}

	if event != nil {
		view.State = event.VehicleState
		if len(event.EventTypes) > 0 {
			view.PrevEvents = event.EventTypes
		}
		updated := event.Timestamp
		view.Updated = &updated
	}

	if telemetry != nil && telemetry.GPS != nil {
		gps := *telemetry.GPS
		view.GPS = &gps
	}

	return view
}
