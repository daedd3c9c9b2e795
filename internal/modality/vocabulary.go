package modality

import "mds-backend/internal/models"

var Micromobility Rules = &rules{
	modality: models.ModalityMicromobility,
	events: setOf[models.EventType](
		"agency_drop_off",
		"agency_pick_up",
		"battery_charged",
		"battery_low",
		"comms_lost",
		"comms_restored",
		"compliance_pick_up",
		"decommissioned",
		"located",
		"maintenance",
		"maintenance_pick_up",
		"missing",
		"off_hours",
		"on_hours",
		"provider_drop_off",
		"rebalance_pick_up",
		"reservation_cancel",
		"reservation_start",
		"system_resume",
		"system_suspend",
		"trip_cancel",
		"trip_end",
		"trip_enter_jurisdiction",
		"trip_leave_jurisdiction",
		"trip_start",
		"unspecified",
	),
	states: setOf[models.VehicleState](
		"available",
		"elsewhere",
		"non_operational",
		"on_trip",
		"removed",
		"reserved",
		"unknown",
	),
	tripExits: setOf[models.EventType](
		"trip_cancel",
		"trip_end",
		"trip_leave_jurisdiction",
	),
}

var Taxi Rules = &rules{
	modality: models.ModalityTaxi,
	events: setOf[models.EventType](
		"comms_lost",
		"comms_restored",
		"customer_cancellation",
		"decommissioned",
		"driver_cancellation",
		"enter_jurisdiction",
		"leave_jurisdiction",
		"maintenance",
		"maintenance_end",
		"maintenance_start",
		"provider_cancellation",
		"recommission",
		"reservation_start",
		"reservation_stop",
		"service_end",
		"service_start",
		"trip_end",
		"trip_resume",
		"trip_start",
		"trip_stop",
		"unspecified",
	),
	states: setOf[models.VehicleState](
		"available",
		"elsewhere",
		"non_operational",
		"on_trip",
		"removed",
		"reserved",
		"stopped",
		"unknown",
	),
	tripExits: setOf[models.EventType](
		"customer_cancellation",
		"driver_cancellation",
		"leave_jurisdiction",
		"provider_cancellation",
		"trip_end",
	),
	tracksTripState: true,
}

var TNC Rules = &rules{
	modality: models.ModalityTNC,
	events: setOf[models.EventType](
		"comms_lost",
		"comms_restored",
		"decommissioned",
		"driver_cancellation",
		"enter_jurisdiction",
		"leave_jurisdiction",
		"maintenance",
		"maintenance_end",
		"maintenance_start",
		"passenger_cancellation",
		"provider_cancellation",
		"recommission",
		"reservation_start",
		"reservation_stop",
		"service_end",
		"service_start",
		"trip_end",
		"trip_resume",
		"trip_start",
		"trip_stop",
		"unspecified",
	),
	states: setOf[models.VehicleState](
		"available",
		"elsewhere",
		"non_operational",
		"on_trip",
		"removed",
		"reserved",
		"stopped",
		"unknown",
	),
	tripExits: setOf[models.EventType](
		"driver_cancellation",
		"leave_jurisdiction",
		"passenger_cancellation",
		"provider_cancellation",
		"trip_end",
	),
	tracksTripState: true,
}
