package cache

import (
	"time"

	"mds-backend/internal/config"
)

// CacheConfig holds key naming and TTLs. A zero TTL keeps the key until overwritten.
type CacheConfig struct {
	KeyPrefix    string        `json:"keyPrefix"`
	DeviceTTL    time.Duration `json:"deviceTTL"`
	EventTTL     time.Duration `json:"eventTTL"`
	TelemetryTTL time.Duration `json:"telemetryTTL"`
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		KeyPrefix: "mds:",
	}
}

// FromConfig maps the application settings onto the cache configuration.
func FromConfig(cfg config.CacheConfig) CacheConfig {
	out := DefaultCacheConfig()
	if cfg.KeyPrefix != "" {
		out.KeyPrefix = cfg.KeyPrefix
	}
	out.DeviceTTL = cfg.DeviceTTL
	out.EventTTL = cfg.EventTTL
	out.TelemetryTTL = cfg.TelemetryTTL
	return out
}

// GetTTLForDataType returns appropriate TTL based on data type
func (c CacheConfig) GetTTLForDataType(dataType string) time.Duration {
	switch dataType {
	case keyDevice:
		return c.DeviceTTL
	case keyEvent:
		return c.EventTTL
	case keyTelemetry:
		return c.TelemetryTTL
	default:
		return 0
	}
}
