// Package modality holds the per-modality vocabularies: legal event types, legal vehicle
// states and the events that conclude a trip.
package modality

import "mds-backend/internal/models"

// Rules is the vocabulary of one modality.
type Rules interface {
	Modality() models.Modality
	LegalEvent(eventType models.EventType) bool
	LegalState(state models.VehicleState) bool
	// IsTripExit reports whether eventType concludes a trip, so a trip_state is not
	// expected even though the vehicle is still in a trip state.
	IsTripExit(eventType models.EventType) bool
	// TracksTripState reports whether events carrying a trip_id are expected to
	// report a trip_state.
	TracksTripState() bool
}

type rules struct {
	modality        models.Modality
	events          map[models.EventType]struct{}
	states          map[models.VehicleState]struct{}
	tripExits       map[models.EventType]struct{}
	tracksTripState bool
}

func (r *rules) Modality() models.Modality { return r.modality }

func (r *rules) LegalEvent(eventType models.EventType) bool {
	_, ok := r.events[eventType]
	return ok
}

func (r *rules) LegalState(state models.VehicleState) bool {
	_, ok := r.states[state]
	return ok
}

func (r *rules) IsTripExit(eventType models.EventType) bool {
	_, ok := r.tripExits[eventType]
	return ok
}

func (r *rules) TracksTripState() bool { return r.tracksTripState }

var registry = map[models.Modality]Rules{
	models.ModalityMicromobility: Micromobility,
	models.ModalityTaxi:          Taxi,
	models.ModalityTNC:           TNC,
}

// For returns the rules of m. An empty modality means micromobility.
func For(m models.Modality) (Rules, bool) {
	if m == "" {
		return Micromobility, true
	}
	r, ok := registry[m]
	return r, ok
}

// All returns the rules of every known modality.
func All() []Rules {
	return []Rules{Micromobility, Taxi, TNC}
}

var tripStates = setOf[models.VehicleState]("on_trip", "reserved", "stopped")

var legalTripStates = setOf[models.TripState]("on_trip", "reserved", "stopped")

var tripBoundaryEvents = []models.EventType{
	models.EventTripStart,
	models.EventTripEnd,
	models.EventTripEnterJurisdiction,
	models.EventTripLeaveJurisdiction,
}

// IsTripState reports whether state is part of a trip lifecycle.
func IsTripState(state models.VehicleState) bool {
	_, ok := tripStates[state]
	return ok
}

func LegalTripState(state models.TripState) bool {
	_, ok := legalTripStates[state]
	return ok
}

// TripBoundaryEvents are the event types that open or close a trip within the
// jurisdiction. They require a trip_id and telemetry.
func TripBoundaryEvents() []models.EventType {
	out := make([]models.EventType, len(tripBoundaryEvents))
	copy(out, tripBoundaryEvents)
	return out
}

func setOf[T ~string](values ...T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
