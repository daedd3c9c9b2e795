package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/websocket"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/jwt"
	"mds-backend/pkg/utils"
)

// WebSocketHandler subscribes clients to the live vehicle feed.
type WebSocketHandler struct {
	hub     *websocket.Hub
	jwtUtil *jwt.JWTUtil
}

func NewWebSocketHandler(hub *websocket.Hub, jwtUtil *jwt.JWTUtil) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, jwtUtil: jwtUtil}
}

// HandleWebSocket authenticates from the token query parameter or the Authorization
// header, since browsers cannot set headers on an upgrade. Filters come from the
// device_id, provider_id and state query parameters.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		utils.ErrorResponse(c, appErrors.New(appErrors.CodeUnauthorized, "authentication token required"))
		return
	}

	claims, err := h.jwtUtil.ValidateToken(token)
	if err != nil {
		logger.Debug("WebSocket connection rejected", zap.Error(err))
		utils.ErrorResponse(c, appErrors.New(appErrors.CodeUnauthorized, "invalid authentication token"))
		return
	}

	filters := websocket.Filters{
		DeviceIDs:   c.QueryArray("device_id"),
		ProviderIDs: c.QueryArray("provider_id"),
		States:      c.QueryArray("state"),
	}
	var scope string
	if !claims.HasScope(jwt.ScopeRegulator) {
		if claims.ProviderID == "" {
			utils.ErrorResponse(c, appErrors.New(appErrors.CodeUnauthorized, "regulator scope or provider_id required"))
			return
		}
		scope = claims.ProviderID
	}

	conn, err := h.hub.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	if err := h.hub.RegisterClient(clientID, claims.ProviderID, scope, conn, filters); err != nil {
		logger.Warn("Failed to register WebSocket client", zap.String("client_id", clientID), zap.Error(err))
		conn.Close()
		return
	}

	logger.Info("WebSocket client connected", zap.String("client_id", clientID), zap.String("scope", scope), zap.Any("filters", filters))
}

// Stats reports connected client counts.
func (h *WebSocketHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.GetClientStats())
}
