package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/jwt"
	"mds-backend/pkg/utils"
)

const (
	ClaimsKey     = "claims"
	ProviderIDKey = "provider_id"
)

// AuthMiddleware requires a valid bearer token and stores its claims on the context.
func AuthMiddleware(jwtUtil *jwt.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(c, appErrors.New(appErrors.CodeUnauthorized, "authorization header required"))
			return
		}

		// both "Bearer <token>" and a bare token are accepted
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := jwtUtil.ValidateToken(tokenString)
		if err != nil {
			logger.WithRequestID(GetRequestID(c)).Debug("Token rejected", zap.Error(err))
			utils.AbortWithError(c, appErrors.New(appErrors.CodeUnauthorized, "invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(ProviderIDKey, claims.ProviderID)
		c.Next()
	}
}

// RequireProvider rejects tokens without a provider_id claim.
func RequireProvider() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetProviderID(c) == "" {
			utils.AbortWithError(c, appErrors.New(appErrors.CodeUnauthorized, "token has no provider_id"))
			return
		}
		c.Next()
	}
}

// RequireRegulatorOrProvider lets regulators through unrestricted and providers through
// scoped to their own records.
func RequireRegulatorOrProvider() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || (!claims.HasScope(jwt.ScopeRegulator) && claims.ProviderID == "") {
			utils.AbortWithError(c, appErrors.New(appErrors.CodeUnauthorized, "regulator scope or provider_id required"))
			return
		}
		c.Next()
	}
}

// GetClaims returns the token claims set by AuthMiddleware.
func GetClaims(c *gin.Context) *jwt.Claims {
	if value, exists := c.Get(ClaimsKey); exists {
		if claims, ok := value.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}

func GetProviderID(c *gin.Context) string {
	return c.GetString(ProviderIDKey)
}

// IsRegulator reports whether the caller holds the regulator scope.
func IsRegulator(c *gin.Context) bool {
	claims := GetClaims(c)
	return claims != nil && claims.HasScope(jwt.ScopeRegulator)
}
