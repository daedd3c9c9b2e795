package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Stream    StreamConfig
	MQTT      MQTTConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
}

// StoreConfig selects the store of record: "mongo" or "postgres".
type StoreConfig struct {
	Driver      string
	MongoURI    string
	MongoDB     string
	PostgresDSN string
}

type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

type CacheConfig struct {
	KeyPrefix    string
	DeviceTTL    time.Duration
	EventTTL     time.Duration
	TelemetryTTL time.Duration
}

// StreamConfig selects the append-only stream: "redis", "mqtt" or "none".
type StreamConfig struct {
	Driver    string
	KeyPrefix string
	MaxLen    int64
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// RateLimitConfig selects where request budgets live: "memory" or "redis".
type RateLimitConfig struct {
	Driver    string
	KeyPrefix string
	RPS       float64
	Burst     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")

	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("MONGO_DB", "mds")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_RETRY_DELAY", "100ms")
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("REDIS_POOL_TIMEOUT", "4s")

	v.SetDefault("CACHE_KEY_PREFIX", "mds:")
	v.SetDefault("CACHE_DEVICE_TTL", "0s")
	v.SetDefault("CACHE_EVENT_TTL", "0s")
	v.SetDefault("CACHE_TELEMETRY_TTL", "0s")

	v.SetDefault("STREAM_DRIVER", "redis")
	v.SetDefault("STREAM_KEY_PREFIX", "mds:stream:")
	v.SetDefault("STREAM_MAX_LEN", 100000)

	v.SetDefault("MQTT_CLIENT_ID", "mds-backend")
	v.SetDefault("MQTT_TOPIC_PREFIX", "mds")
	v.SetDefault("MQTT_QOS", 1)

	v.SetDefault("JWT_EXPIRY", "24h")

	v.SetDefault("RATE_LIMIT_DRIVER", "memory")
	v.SetDefault("RATE_LIMIT_KEY_PREFIX", "mds:ratelimit:")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
}

// Load reads an optional .env file and then the process environment. A non-nil error
// means Validate failed; the returned Config is still populated.
func Load() (*Config, error) {
	// .env is optional; the environment alone is enough in containers
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			Environment:    v.GetString("ENVIRONMENT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("STORE_DRIVER")),
			MongoURI:    v.GetString("MONGO_URI"),
			MongoDB:     v.GetString("MONGO_DB"),
			PostgresDSN: v.GetString("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			Host:         v.GetString("REDIS_HOST"),
			Port:         v.GetString("REDIS_PORT"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			RetryDelay:   v.GetDuration("REDIS_RETRY_DELAY"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolTimeout:  v.GetDuration("REDIS_POOL_TIMEOUT"),
		},
		Cache: CacheConfig{
			KeyPrefix:    v.GetString("CACHE_KEY_PREFIX"),
			DeviceTTL:    v.GetDuration("CACHE_DEVICE_TTL"),
			EventTTL:     v.GetDuration("CACHE_EVENT_TTL"),
			TelemetryTTL: v.GetDuration("CACHE_TELEMETRY_TTL"),
		},
		Stream: StreamConfig{
			Driver:    strings.ToLower(v.GetString("STREAM_DRIVER")),
			KeyPrefix: v.GetString("STREAM_KEY_PREFIX"),
			MaxLen:    v.GetInt64("STREAM_MAX_LEN"),
		},
		MQTT: MQTTConfig{
			Broker:      v.GetString("MQTT_BROKER"),
			ClientID:    v.GetString("MQTT_CLIENT_ID"),
			Username:    v.GetString("MQTT_USERNAME"),
			Password:    v.GetString("MQTT_PASSWORD"),
			TopicPrefix: v.GetString("MQTT_TOPIC_PREFIX"),
			QoS:         byte(v.GetInt("MQTT_QOS")),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: v.GetDuration("JWT_EXPIRY"),
		},
		RateLimit: RateLimitConfig{
			Driver:    strings.ToLower(v.GetString("RATE_LIMIT_DRIVER")),
			KeyPrefix: v.GetString("RATE_LIMIT_KEY_PREFIX"),
			RPS:       v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:     v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	// the loaded values come back with a validation error so tools that need only part
	// of the configuration can still use it
	return cfg, cfg.Validate()
}

// Validate checks that the selected drivers have what they need to connect.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable is not set")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Stream.Driver {
	case "redis", "none":
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("MQTT_BROKER environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STREAM_DRIVER %q", c.Stream.Driver)
	}

	switch c.RateLimit.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_DRIVER %q", c.RateLimit.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
