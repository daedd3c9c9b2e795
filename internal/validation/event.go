package validation

import (
	"mds-backend/internal/modality"
	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// ValidateEvent checks an event against the vocabulary of the device's modality and the
// trip lifecycle rules. An empty trip_id is cleared on e before the trip checks run.
func ValidateEvent(m models.Modality, e *models.VehicleEvent) *appErrors.MDSError {
	if e == nil {
		return appErrors.MissingParam("missing event")
	}
	if e.Timestamp == 0 {
		return appErrors.MissingParam("missing timestamp")
	}
	if !isTimestamp(e.Timestamp) {
		return appErrors.BadParam("invalid timestamp %d", e.Timestamp)
	}
	if e.EventTypes == nil {
		return appErrors.MissingParam("missing event_types")
	}
	if len(e.EventTypes) == 0 {
		return appErrors.BadParam("empty event_types")
	}
	if e.VehicleState == "" {
		return appErrors.MissingParam("missing vehicle_state")
	}

	rules, ok := modality.For(m)
	if !ok {
		return appErrors.BadParam("invalid event_types %v for modality %s", e.EventTypes, m)
	}
	for _, eventType := range e.EventTypes {
		if !rules.LegalEvent(eventType) {
			return appErrors.BadParam("invalid event_type %s", eventType)
		}
	}
	if !rules.LegalState(e.VehicleState) {
		return appErrors.BadParam("invalid vehicle_state %s", e.VehicleState)
	}

	// Some providers send "" for events outside a trip.
	if e.TripID != nil && *e.TripID == "" {
		e.TripID = nil
	}

	if rules.TracksTripState() && e.TripID != nil && modality.IsTripState(e.VehicleState) && !endsTrip(rules, e) {
		if e.TripState == nil {
			return appErrors.MissingParam("missing trip_state")
		}
		if !modality.LegalTripState(*e.TripState) {
			return appErrors.BadParam("invalid trip_state %s", *e.TripState)
		}
	}

	if e.TripID != nil && !isUUID(*e.TripID) {
		return appErrors.BadParam("invalid trip_id %s", *e.TripID)
	}

	if e.HasEventType(modality.TripBoundaryEvents()...) {
		if err := ValidateTelemetry(e.Telemetry); err != nil {
			return err
		}
		if e.TripID == nil {
			return appErrors.MissingParam("missing trip_id")
		}
		return nil
	}

	if e.HasEventType(models.EventProviderDropOff) {
		return ValidateTelemetry(e.Telemetry)
	}

	return nil
}

func endsTrip(rules modality.Rules, e *models.VehicleEvent) bool {
	for _, eventType := range e.EventTypes {
		if rules.IsTripExit(eventType) {
			return true
		}
	}
	return false
}
