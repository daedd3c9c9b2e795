package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mds-backend/internal/models"
)

// ClientProvider hands out the current go-redis client. *pkg/redis.Client satisfies it.
type ClientProvider interface {
	GetClient() *redis.Client
}

// RedisStream appends records to one Redis stream per kind, trimmed to about maxLen entries.
type RedisStream struct {
	client    ClientProvider
	keyPrefix string
	maxLen    int64
}

func NewRedisStream(client ClientProvider, keyPrefix string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, keyPrefix: keyPrefix, maxLen: maxLen}
}

// StreamKey is the Redis key records of kind are appended to.
func (s *RedisStream) StreamKey(kind string) string {
	return s.keyPrefix + kind
}

func (s *RedisStream) WriteDevice(ctx context.Context, device *models.Device) error {
	return s.add(ctx, s.client.GetClient(), KindDevice, device.DeviceID, device)
}

func (s *RedisStream) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	return s.add(ctx, s.client.GetClient(), KindEvent, event.DeviceID, event)
}

func (s *RedisStream) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error {
	if len(telemetry) == 0 {
		return nil
	}

	pipe := s.client.GetClient().Pipeline()
	for _, t := range telemetry {
		if err := s.add(ctx, pipe, KindTelemetry, t.DeviceID, t); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append telemetry to stream: %w", err)
	}
	return nil
}

func (s *RedisStream) WriteEventError(ctx context.Context, eventError *models.EventError) error {
	return s.add(ctx, s.client.GetClient(), KindEventError, eventError.ProviderID, eventError)
}

func (s *RedisStream) add(ctx context.Context, cmd redis.Cmdable, kind, id string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	args := &redis.XAddArgs{
		Stream: s.StreamKey(kind),
		Values: map[string]interface{}{"id": id, "data": string(data)},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := cmd.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append %s to stream: %w", kind, err)
	}
	return nil
}
