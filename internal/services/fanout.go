package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
)

// FanOut copies durable records to the best-effort sinks. Every sink is written
// concurrently and awaited; failures are logged and counted, never returned.
type FanOut struct {
	sinks []namedSink

	mu       sync.Mutex
	failures map[string]int64
}

type namedSink struct {
	name string
	sink Sink
}

func NewFanOut() *FanOut {
	return &FanOut{failures: make(map[string]int64)}
}

// Add registers a sink under name. Nil sinks are ignored.
func (f *FanOut) Add(name string, sink Sink) *FanOut {
	if sink != nil {
		f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
	}
	return f
}

func (f *FanOut) WriteDevice(ctx context.Context, device *models.Device) {
	f.run("device", device.DeviceID, func(s Sink) error {
		return s.WriteDevice(ctx, device)
	})
}

func (f *FanOut) WriteEvent(ctx context.Context, event *models.VehicleEvent) {
	f.run("event", event.DeviceID, func(s Sink) error {
		return s.WriteEvent(ctx, event)
	})
}

func (f *FanOut) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) {
	if len(telemetry) == 0 {
		return
	}
	f.run("telemetry", fmt.Sprintf("%d rows", len(telemetry)), func(s Sink) error {
		return s.WriteTelemetry(ctx, telemetry)
	})
}

// Failures returns the number of failed writes per sink since start.
func (f *FanOut) Failures() map[string]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]int64, len(f.sinks))
	for _, s := range f.sinks {
		out[s.name] = f.failures[s.name]
	}
	return out
}

func (f *FanOut) run(kind, id string, write func(Sink) error) {
	p := pool.New().WithMaxGoroutines(max(len(f.sinks), 1))
	for _, s := range f.sinks {
		p.Go(func() {
			var err error
			if recovered := panics.Try(func() { err = write(s.sink) }); recovered != nil {
				err = recovered.AsError()
			}
			if err != nil {
				f.recordFailure(s.name)
				logger.Warn("Fan-out write failed",
					zap.String("sink", s.name),
					zap.String("kind", kind),
					zap.String("id", id),
					zap.Error(err),
				)
			}
		})
	}
	p.Wait()
}

func (f *FanOut) recordFailure(name string) {
	f.mu.Lock()
	f.failures[name]++
	f.mu.Unlock()
}
