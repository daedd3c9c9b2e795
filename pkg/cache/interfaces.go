package cache

import "github.com/redis/go-redis/v9"

// ClientProvider hands out the current go-redis client. *pkg/redis.Client satisfies it.
type ClientProvider interface {
	GetClient() *redis.Client
}

// CacheStats provides cache performance metrics
type CacheStats struct {
	HitRate     float64 `json:"hitRate"`
	MissRate    float64 `json:"missRate"`
	KeyCount    int64   `json:"keyCount"`
	TotalHits   int64   `json:"totalHits"`
	TotalMisses int64   `json:"totalMisses"`
}
