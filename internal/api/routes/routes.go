package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mds-backend/internal/api/handlers"
	"mds-backend/internal/api/middleware"
	"mds-backend/internal/config"
	"mds-backend/internal/services"
	"mds-backend/internal/websocket"
	"mds-backend/pkg/jwt"
	"mds-backend/pkg/ratelimit"
	"mds-backend/pkg/redis"
)

// Dependencies are the wired components the router serves.
type Dependencies struct {
	Config          *config.Config
	Store           services.Store
	Cache           services.Cache
	RedisClient     *redis.Client
	FanOut          *services.FanOut
	Hub             *websocket.Hub
	AgencyService   *services.AgencyService
	ProviderService *services.ProviderService
	JWT             *jwt.JWTUtil
	RateLimiter     ratelimit.Limiter
}

func SetupRoutes(deps Dependencies) *gin.Engine {
	if deps.Config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(cors.New(corsConfig(deps.Config.Server.AllowedOrigins)))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Cache, deps.RedisClient, deps.FanOut, deps.Hub)
	agencyHandler := handlers.NewAgencyHandler(deps.AgencyService)
	providerHandler := handlers.NewProviderHandler(deps.ProviderService)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.JWT)

	router.GET("/health", healthHandler.HealthCheck)

	// the live feed authenticates itself; browsers cannot send headers on upgrade
	router.GET("/provider/vehicles/live", wsHandler.HandleWebSocket)

	agency := router.Group("/agency")
	agency.Use(middleware.AuthMiddleware(deps.JWT), middleware.RequireProvider(), middleware.RateLimitMiddleware(deps.RateLimiter))
	agencyHandler.RegisterRoutes(agency)

	provider := router.Group("/provider")
	provider.Use(middleware.AuthMiddleware(deps.JWT), middleware.RequireRegulatorOrProvider(), middleware.RateLimitMiddleware(deps.RateLimiter))
	providerHandler.RegisterRoutes(provider)
	provider.GET("/vehicles/live/stats", wsHandler.Stats)

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
	}

	// "*" allows any origin, which rules out credentials
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}
