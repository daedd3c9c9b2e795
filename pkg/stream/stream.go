// Package stream publishes accepted records and rejected submissions to an append-only log
// for downstream consumers.
package stream

import (
	"context"

	"mds-backend/internal/models"
)

// Kinds of record written to the stream.
const (
	KindDevice     = "device"
	KindEvent      = "event"
	KindTelemetry  = "telemetry"
	KindEventError = "event_error"
)

// Noop drops everything. Used when no stream is configured.
type Noop struct{}

func (Noop) WriteDevice(context.Context, *models.Device) error         { return nil }
func (Noop) WriteEvent(context.Context, *models.VehicleEvent) error    { return nil }
func (Noop) WriteTelemetry(context.Context, []*models.Telemetry) error { return nil }
func (Noop) WriteEventError(context.Context, *models.EventError) error { return nil }
