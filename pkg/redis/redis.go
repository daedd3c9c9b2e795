// Package redis owns the shared go-redis client used by the cache, the Redis stream and
// the Redis rate limiter. The client is replaced in the background when Redis goes away,
// so callers fetch it through GetClient on every use.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mds-backend/internal/config"
	"mds-backend/internal/logger"
)

const (
	pingTimeout         = 3 * time.Second
	healthCheckInterval = 30 * time.Second
	minReconnectBackoff = time.Second
	maxReconnectBackoff = 30 * time.Second
)

var errNotInitialized = errors.New("redis client not initialized")

type Client struct {
	client        *redis.Client
	config        config.RedisConfig
	mu            sync.RWMutex
	isConnected   bool
	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// PoolStats is the connection pool snapshot reported by the health endpoint.
type PoolStats struct {
	IsConnected bool   `json:"isConnected"`
	Hits        uint32 `json:"hits"`
	Misses      uint32 `json:"misses"`
	Timeouts    uint32 `json:"timeouts"`
	TotalConns  uint32 `json:"totalConns"`
	IdleConns   uint32 `json:"idleConns"`
	StaleConns  uint32 `json:"staleConns"`
}

// NewClient dials Redis and starts the health and reconnect loops. An unreachable server
// is not an error; the client keeps retrying until Close.
func NewClient(cfg config.RedisConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config:        cfg,
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.connect()
	go c.healthCheckLoop()
	go c.reconnectLoop()

	return c
}

// options prefers REDIS_URL and falls back to host and port when it is unset or malformed.
func (c *Client) options() *redis.Options {
	opt := &redis.Options{
		Addr:     c.addr(),
		Password: c.config.Password,
		DB:       c.config.DB,
	}
	if c.config.URL != "" {
		parsed, err := redis.ParseURL(c.config.URL)
		if err != nil {
			logger.Warn("Failed to parse Redis URL, falling back to host:port", zap.Error(err))
		} else {
			opt = parsed
		}
	}

	opt.PoolSize = c.config.PoolSize
	opt.MinIdleConns = c.config.MinIdleConns
	opt.MaxRetries = c.config.MaxRetries
	opt.MinRetryBackoff = c.config.RetryDelay
	opt.DialTimeout = c.config.DialTimeout
	opt.ReadTimeout = c.config.ReadTimeout
	opt.WriteTimeout = c.config.WriteTimeout
	opt.PoolTimeout = c.config.PoolTimeout
	return opt
}

// connect dials a fresh client, swaps it in and then closes the previous one. Callers
// re-read GetClient per operation, so they pick up the new pool on their next call.
func (c *Client) connect() {
	opt := c.options()
	next := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(c.ctx, pingTimeout)
	err := next.Ping(ctx).Err()
	cancel()

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = next.Close()
		return
	}
	previous := c.client
	c.client = next
	c.isConnected = err == nil
	c.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	if err != nil {
		logger.Warn("Redis connection test failed", zap.String("addr", opt.Addr), zap.Error(err))
		return
	}
	logger.Info("Redis connected", zap.String("addr", opt.Addr))
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%s", c.config.Host, c.config.Port)
}

func (c *Client) GetClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.isConnected = connected
	c.mu.Unlock()
}

// HealthCheck pings Redis and schedules a reconnect when the ping fails.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{ConnectionInfo: c.addr()}

	client := c.GetClient()
	if client == nil {
		status.Error = errNotInitialized.Error()
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	if err != nil {
		status.Error = err.Error()
		c.setConnected(false)
		c.triggerReconnect()
		return status
	}

	c.setConnected(true)
	status.IsConnected = true
	return status
}

func (c *Client) triggerReconnect() {
	select {
	case c.reconnectChan <- struct{}{}:
	default:
		// already pending
	}
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if status := c.HealthCheck(c.ctx); !status.IsConnected {
				logger.Warn("Redis health check failed", zap.String("error", status.Error))
			}
		}
	}
}

// reconnectLoop redials with exponential backoff until a ping succeeds or Close is called.
func (c *Client) reconnectLoop() {
	backoff := minReconnectBackoff

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
		}

		if c.IsConnected() {
			continue
		}

		logger.Info("Attempting to reconnect to Redis")
		c.connect()
		if c.IsConnected() {
			logger.Info("Reconnected to Redis")
			backoff = minReconnectBackoff
			continue
		}

		logger.Warn("Redis reconnection failed", zap.Duration("retry_in", backoff))
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxReconnectBackoff)
		c.triggerReconnect()
	}
}

// Close stops the background loops and closes the pool.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) GetConnectionStats() PoolStats {
	stats := PoolStats{IsConnected: c.IsConnected()}

	client := c.GetClient()
	if client == nil {
		return stats
	}

	pool := client.PoolStats()
	stats.Hits = pool.Hits
	stats.Misses = pool.Misses
	stats.Timeouts = pool.Timeouts
	stats.TotalConns = pool.TotalConns
	stats.IdleConns = pool.IdleConns
	stats.StaleConns = pool.StaleConns
	return stats
}
