package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mds-backend/internal/services"
	"mds-backend/internal/websocket"
	"mds-backend/pkg/cache"
	"mds-backend/pkg/redis"
)

const healthTimeout = 5 * time.Second

type cacheStatser interface {
	GetCacheStats(ctx context.Context) cache.CacheStats
}

type HealthHandler struct {
	store       services.Store
	cache       services.Cache
	redisClient *redis.Client
	fanOut      *services.FanOut
	hub         *websocket.Hub
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler builds the handler. cache, redisClient, fanOut and hub may be nil.
func NewHealthHandler(store services.Store, cache services.Cache, redisClient *redis.Client, fanOut *services.FanOut, hub *websocket.Hub) *HealthHandler {
	return &HealthHandler{
		store:       store,
		cache:       cache,
		redisClient: redisClient,
		fanOut:      fanOut,
		hub:         hub,
	}
}

// HealthCheck reports 503 when the store or the cache cannot be reached.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}
	overallHealthy := true

	storeStatus := checkService(ctx, "store", h.store.Health)
	response.Services["store"] = storeStatus
	if !storeStatus["healthy"].(bool) {
		overallHealthy = false
	}

	if h.cache != nil {
		cacheStatus := checkService(ctx, "cache", h.cache.Health)
		if h.redisClient != nil {
			cacheStatus["connectionStats"] = h.redisClient.GetConnectionStats()
		}
		if statser, ok := h.cache.(cacheStatser); ok {
			cacheStatus["stats"] = statser.GetCacheStats(ctx)
		}
		response.Services["cache"] = cacheStatus
		if !cacheStatus["healthy"].(bool) {
			overallHealthy = false
		}
	}

	if h.fanOut != nil {
		response.Services["fanout"] = map[string]interface{}{
			"service":  "fanout",
			"failures": h.fanOut.Failures(),
		}
	}
	if h.hub != nil {
		response.Services["live"] = map[string]interface{}{
			"service": "live",
			"clients": h.hub.GetClientStats(),
		}
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func checkService(ctx context.Context, name string, ping func(context.Context) error) map[string]interface{} {
	status := map[string]interface{}{
		"service": name,
		"healthy": false,
	}

	start := time.Now()
	if err := ping(ctx); err != nil {
		status["error"] = err.Error()
	} else {
		status["healthy"] = true
		status["message"] = "Connected"
	}
	status["responseTime"] = time.Since(start).String()
	return status
}
