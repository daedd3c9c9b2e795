package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	redisClient "github.com/redis/go-redis/v9"

	"mds-backend/internal/models"
)

const (
	keyDevice    = "device"
	keyEvent     = "event"
	keyTelemetry = "telemetry"
)

// RedisCacheManager keeps device registrations and the latest event and telemetry per
// device in Redis. Reads return nil without error on a miss.
type RedisCacheManager struct {
	client ClientProvider
	config CacheConfig
	stats  *cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	mu          sync.RWMutex
	totalHits   int64
	totalMisses int64
}

// NewRedisCacheManager creates a new Redis-backed cache manager
func NewRedisCacheManager(client ClientProvider, config CacheConfig) *RedisCacheManager {
	return &RedisCacheManager{
		client: client,
		config: config,
		stats:  &cacheStats{},
	}
}

func (r *RedisCacheManager) ReadDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	found, err := r.get(ctx, r.buildKey(keyDevice, deviceID), &device)
	if err != nil || !found {
		return nil, err
	}
	return &device, nil
}

func (r *RedisCacheManager) WriteDevice(ctx context.Context, device *models.Device) error {
	return r.set(ctx, r.client.GetClient(), keyDevice, device.DeviceID, device)
}

// ReadDevices returns one entry per id, nil where the device is not cached.
func (r *RedisCacheManager) ReadDevices(ctx context.Context, deviceIDs []string) ([]*models.Device, error) {
	return mget[models.Device](ctx, r, keyDevice, deviceIDs)
}

func (r *RedisCacheManager) ReadEvent(ctx context.Context, deviceID string) (*models.VehicleEvent, error) {
	var event models.VehicleEvent
	found, err := r.get(ctx, r.buildKey(keyEvent, deviceID), &event)
	if err != nil || !found {
		return nil, err
	}
	return &event, nil
}

// WriteEvent keeps the newest event per device and mirrors its vehicle_state onto the
// cached device's status. An event older than the cached one is ignored.
func (r *RedisCacheManager) WriteEvent(ctx context.Context, event *models.VehicleEvent) error {
	latest, err := r.ReadEvent(ctx, event.DeviceID)
	if err != nil {
		return err
	}
	if latest != nil && latest.Timestamp > event.Timestamp {
		return nil
	}

	device, err := r.ReadDevice(ctx, event.DeviceID)
	if err != nil {
		return err
	}

	stored := *event
	stored.Telemetry = nil

	pipe := r.client.GetClient().TxPipeline()
	if err := r.set(ctx, pipe, keyEvent, event.DeviceID, &stored); err != nil {
		return err
	}
	if device != nil {
		device.Status = event.VehicleState
		if err := r.set(ctx, pipe, keyDevice, device.DeviceID, device); err != nil {
			return err
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write event to cache: %w", err)
	}
	return nil
}

// ReadEvents returns one entry per id, nil where no event is cached.
func (r *RedisCacheManager) ReadEvents(ctx context.Context, deviceIDs []string) ([]*models.VehicleEvent, error) {
	return mget[models.VehicleEvent](ctx, r, keyEvent, deviceIDs)
}

// ReadTelemetry returns the latest sample per id, nil where none is cached.
func (r *RedisCacheManager) ReadTelemetry(ctx context.Context, deviceIDs []string) ([]*models.Telemetry, error) {
	return mget[models.Telemetry](ctx, r, keyTelemetry, deviceIDs)
}

// WriteTelemetry keeps the newest sample per device.
func (r *RedisCacheManager) WriteTelemetry(ctx context.Context, telemetry []*models.Telemetry) error {
	if len(telemetry) == 0 {
		return nil
	}

	newest := make(map[string]*models.Telemetry)
	var order []string
	for _, t := range telemetry {
		prev, ok := newest[t.DeviceID]
		if !ok {
			order = append(order, t.DeviceID)
		}
		if !ok || t.Timestamp > prev.Timestamp {
			newest[t.DeviceID] = t
		}
	}

	cached, err := r.ReadTelemetry(ctx, order)
	if err != nil {
		return err
	}

	pipe := r.client.GetClient().Pipeline()
	queued := 0
	for i, deviceID := range order {
		if cached[i] != nil && cached[i].Timestamp > newest[deviceID].Timestamp {
			continue
		}
		if err := r.set(ctx, pipe, keyTelemetry, deviceID, newest[deviceID]); err != nil {
			return err
		}
		queued++
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write telemetry to cache: %w", err)
	}
	return nil
}

// GetCacheStats returns cache performance statistics
func (r *RedisCacheManager) GetCacheStats(ctx context.Context) CacheStats {
	r.stats.mu.RLock()
	totalHits := r.stats.totalHits
	totalMisses := r.stats.totalMisses
	r.stats.mu.RUnlock()

	total := totalHits + totalMisses
	var hitRate, missRate float64
	if total > 0 {
		hitRate = float64(totalHits) / float64(total)
		missRate = float64(totalMisses) / float64(total)
	}

	var keyCount int64
	if n, err := r.client.GetClient().DBSize(ctx).Result(); err == nil {
		keyCount = n
	}

	return CacheStats{
		HitRate:     hitRate,
		MissRate:    missRate,
		KeyCount:    keyCount,
		TotalHits:   totalHits,
		TotalMisses: totalMisses,
	}
}

// Health verifies cache connectivity
func (r *RedisCacheManager) Health(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

// Helper methods

func (r *RedisCacheManager) buildKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, keyType, identifier)
}

func (r *RedisCacheManager) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.GetClient().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redisClient.Nil) {
			r.recordMiss()
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	r.recordHit()
	return true, nil
}

func (r *RedisCacheManager) set(ctx context.Context, cmd redisClient.Cmdable, keyType, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s data: %w", keyType, err)
	}

	if err := cmd.Set(ctx, r.buildKey(keyType, id), data, r.config.GetTTLForDataType(keyType)).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", keyType, err)
	}
	return nil
}

func mget[T any](ctx context.Context, r *RedisCacheManager, keyType string, ids []string) ([]*T, error) {
	out := make([]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.buildKey(keyType, id)
	}

	values, err := r.client.GetClient().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s entries from cache: %w", keyType, err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			r.recordMiss()
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		r.recordHit()
		out[i] = &item
	}
	return out, nil
}

func (r *RedisCacheManager) recordHit() {
	r.stats.mu.Lock()
	r.stats.totalHits++
	r.stats.mu.Unlock()
}

func (r *RedisCacheManager) recordMiss() {
	r.stats.mu.Lock()
	r.stats.totalMisses++
	r.stats.mu.Unlock()
}
