package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mds-backend/internal/api/routes"
	"mds-backend/internal/config"
	"mds-backend/internal/logger"
	"mds-backend/internal/repository"
	"mds-backend/internal/services"
	"mds-backend/internal/websocket"
	"mds-backend/pkg/cache"
	"mds-backend/pkg/database"
	"mds-backend/pkg/jwt"
	"mds-backend/pkg/mqtt"
	"mds-backend/pkg/ratelimit"
	"mds-backend/pkg/redis"
	"mds-backend/pkg/stream"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is not configured yet
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	redisClient := redis.NewClient(cfg.Redis)
	defer redisClient.Close()

	healthStatus := redisClient.HealthCheck(ctx)
	if healthStatus.IsConnected {
		logger.Info("Redis connected", zap.String("addr", healthStatus.ConnectionInfo))
	} else {
		logger.Warn("Redis connection failed, will retry", zap.String("error", healthStatus.Error))
	}

	cacheManager := cache.NewRedisCacheManager(redisClient, cache.FromConfig(cfg.Cache))

	eventStream, closeStream, err := openStream(cfg, redisClient)
	if err != nil {
		logger.Fatal("Failed to open stream", zap.String("driver", cfg.Stream.Driver), zap.Error(err))
	}
	defer closeStream()

	hub := websocket.NewHub(cfg.Server.AllowedOrigins)
	hub.Start()
	defer hub.Stop()

	fanOut := services.NewFanOut().
		Add("cache", cacheManager).
		Add("stream", eventStream).
		Add("live", hub)

	limiter := newLimiter(ctx, cfg.RateLimit, redisClient)

	router := routes.SetupRoutes(routes.Dependencies{
		Config:          cfg,
		Store:           store,
		Cache:           cacheManager,
		RedisClient:     redisClient,
		FanOut:          fanOut,
		Hub:             hub,
		AgencyService:   services.NewAgencyService(store, cacheManager, eventStream, fanOut),
		ProviderService: services.NewProviderService(store, cacheManager),
		JWT:             jwt.NewJWTUtil(cfg.JWT.Secret, cfg.JWT.Expiry),
		RateLimiter:     limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver), zap.String("stream", cfg.Stream.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (services.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := database.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = database.ClosePostgres(db)
			return nil, nil, err
		}
		return store, func() { _ = database.ClosePostgres(db) }, nil

	default:
		db, err := database.ConnectMongo(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewMongoStore(db), func() { _ = database.Disconnect(db.Client()) }, nil
	}
}

func openStream(cfg *config.Config, redisClient *redis.Client) (services.Stream, func(), error) {
	switch cfg.Stream.Driver {
	case "mqtt":
		client := mqtt.NewClient(cfg.MQTT)
		if err := client.Connect(); err != nil {
			return nil, nil, err
		}
		return stream.NewMQTTStream(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS), client.Disconnect, nil

	case "none":
		return stream.Noop{}, func() {}, nil

	default:
		return stream.NewRedisStream(redisClient, cfg.Stream.KeyPrefix, cfg.Stream.MaxLen), func() {}, nil
	}
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, redisClient *redis.Client) ratelimit.Limiter {
	if cfg.Driver == "redis" {
		return ratelimit.NewRedisLimiter(redisClient, cfg.KeyPrefix, cfg.RPS, cfg.Burst)
	}

	limiter := ratelimit.NewMemoryLimiter(cfg.RPS, cfg.Burst)
	go limiter.Run(ctx)
	return limiter
}
