package validation

import (
	"strconv"

	"mds-backend/internal/models"
	appErrors "mds-backend/pkg/errors"
)

// ValidateTelemetry checks a telemetry sample. The first failing check is returned.
func ValidateTelemetry(t *models.Telemetry) *appErrors.MDSError {
	if t == nil {
		return appErrors.MissingParam("missing telemetry")
	}
	if t.GPS == nil {
		return appErrors.MissingParam("missing gps")
	}
	if !isUUID(t.DeviceID) {
		return appErrors.MissingParam("invalid device_id %s", t.DeviceID)
	}

	gps := t.GPS
	if !isCoordinate(gps.Lat, 90) {
		return appErrors.BadParam("invalid lat %s", formatFloat(gps.Lat))
	}
	if !isCoordinate(gps.Lng, 180) {
		return appErrors.BadParam("invalid lng %s", formatFloat(gps.Lng))
	}
	if !isFloat(gps.Altitude) {
		return appErrors.BadParam("invalid altitude %s", formatFloat(gps.Altitude))
	}
	if !isFloat(gps.Accuracy) {
		return appErrors.BadParam("invalid accuracy %s", formatFloat(gps.Accuracy))
	}
	if !isFloat(gps.Speed) {
		return appErrors.BadParam("invalid speed %s", formatFloat(gps.Speed))
	}
	if gps.Satellites != nil && *gps.Satellites < 0 {
		return appErrors.BadParam("invalid satellites %d", *gps.Satellites)
	}
	if t.Charge != nil && !isPct(*t.Charge) {
		return appErrors.BadParam("invalid charge %s", formatFloat(t.Charge))
	}
	if !isTimestamp(t.Timestamp) {
		return appErrors.BadParam("invalid timestamp %d", t.Timestamp)
	}

	return nil
}

func formatFloat(f *float64) string {
	if f == nil {
		return "null"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
