package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/ratelimit"
	"mds-backend/pkg/utils"
)

// RateLimitMiddleware limits authenticated callers per provider and anonymous callers
// per IP. If the limiter itself fails the request is let through.
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if providerID := GetProviderID(c); providerID != "" {
			key = "provider:" + providerID
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithRequestID(GetRequestID(c)).Warn("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			logger.WithRequestID(GetRequestID(c)).Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("retry_after", retryAfter),
			)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			utils.AbortWithError(c, appErrors.New(appErrors.CodeRateLimited, "rate limit exceeded, please try again later"))
			return
		}

		c.Next()
	}
}
