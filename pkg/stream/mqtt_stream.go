package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"mds-backend/internal/models"
)

// Publisher is the part of the MQTT client the stream needs. *pkg/mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTStream publishes each record to <prefix>/<kind>/<id>.
type MQTTStream struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
}

func NewMQTTStream(publisher Publisher, topicPrefix string, qos byte) *MQTTStream {
	return &MQTTStream{publisher: publisher, topicPrefix: topicPrefix, qos: qos}
}

func (s *MQTTStream) Topic(kind, id string) string {
	return fmt.Sprintf("%s/%s/%s", s.topicPrefix, kind, id)
}

func (s *MQTTStream) WriteDevice(ctx context.Context, device *models.Device) error {
	return s.publish(ctx, KindDevice, device.DeviceID, device)
}

func (s *MQTTStream) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	return s.publish(ctx, KindEvent, event.DeviceID, event)
}

// WriteTelemetry stops at the first failed publish.
func (s *MQTTStream) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error {
	for _, t := range telemetry {
		if err := s.publish(ctx, KindTelemetry, t.DeviceID, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTStream) WriteEventError(ctx context.Context, eventError *models.EventError) error {
	return s.publish(ctx, KindEventError, eventError.ProviderID, eventError)
}

func (s *MQTTStream) publish(ctx context.Context, kind, id string, record interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if err := s.publisher.Publish(s.Topic(kind, id), s.qos, false, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}
