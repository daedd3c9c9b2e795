package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mds-backend/internal/logger"
	"mds-backend/internal/models"
)

const (
	broadcastBuffer = 1000
	clientBuffer    = 256

	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	clientTimeout  = 90 * time.Second
	healthInterval = 30 * time.Second
)

// ErrBroadcastFull is returned when an update cannot be queued without blocking.
var ErrBroadcastFull = errors.New("broadcast channel full")

// Hub pushes accepted records to live subscribers. It is a fan-out sink: writes never
// block, and an update that cannot be queued is dropped and reported as an error.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan VehicleUpdate
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	done       chan struct{}
	stopOnce   sync.Once
	dropped    atomic.Int64
}

// NewHub creates a hub. Upgrades are accepted from allowedOrigins, or from any origin
// when the list is empty or contains "*".
func NewHub(allowedOrigins []string) *Hub {
	return newHub(allowedOrigins, broadcastBuffer)
}

func newHub(allowedOrigins []string, buffer int) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan VehicleUpdate, buffer),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origins["*"] || origin == "" || origins[origin]
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Start begins the hub's main loop
func (h *Hub) Start() {
	go h.run()
	logger.Info("WebSocket hub started")
}

// Stop closes every client connection. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mutex.Lock()
		for id, client := range h.clients {
			delete(h.clients, id)
			close(client.Send)
			if client.Conn != nil {
				client.Conn.Close()
			}
		}
		h.mutex.Unlock()

		logger.Info("WebSocket hub stopped")
	})
}

func (h *Hub) run() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.ID] = client
			h.mutex.Unlock()
			logger.Info("WebSocket client registered",
				zap.String("client_id", client.ID),
				zap.String("provider_id", client.ProviderID),
			)
			if client.Conn != nil {
				go h.handleClient(client)
			}

		case client := <-h.unregister:
			h.remove(client)

		case update := <-h.broadcast:
			h.broadcastToClients(update)

		case <-ticker.C:
			h.healthCheck()

		case <-h.done:
			return
		}
	}
}

// RegisterClient subscribes a connection. providerID is the subscriber's credential.
// A non-empty scope restricts the client to that provider's updates for the life of the
// connection, including after update_filters messages.
func (h *Hub) RegisterClient(clientID, providerID, scope string, conn *websocket.Conn, filters Filters) error {
	client := &Client{
		ID:         clientID,
		ProviderID: providerID,
		Conn:       conn,
		Send:       make(chan VehicleUpdate, clientBuffer),
		LastPing:   time.Now(),
		IsActive:   true,
		scope:      scope,
	}
	client.SetFilters(filters)

	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return fmt.Errorf("websocket hub stopped")
	}
}

// UnregisterClient removes a client
func (h *Hub) UnregisterClient(clientID string) {
	h.mutex.RLock()
	client, exists := h.clients[clientID]
	h.mutex.RUnlock()

	if exists {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}
}

// Broadcast queues an update without blocking.
func (h *Hub) Broadcast(update VehicleUpdate) error {
	select {
	case h.broadcast <- update:
		return nil
	default:
		h.dropped.Add(1)
		return fmt.Errorf("%w: dropping %s update for device %s", ErrBroadcastFull, update.UpdateType, update.DeviceID)
	}
}

func (h *Hub) WriteDevice(_ context.Context, device *models.Device) error {
	return h.Broadcast(VehicleUpdate{
		DeviceID:   device.DeviceID,
		ProviderID: device.ProviderID,
		UpdateType: UpdateTypeDevice,
		State:      device.Status,
		Timestamp:  device.Recorded,
	})
}

func (h *Hub) WriteEvent(_ context.Context, event *models.VehicleEvent) error {
	update := VehicleUpdate{
		DeviceID:   event.DeviceID,
		ProviderID: event.ProviderID,
		UpdateType: UpdateTypeEvent,
		State:      event.VehicleState,
		EventTypes: event.EventTypes,
		Timestamp:  event.Timestamp,
	}
	if event.Telemetry != nil {
		update.GPS = event.Telemetry.GPS
	}
	return h.Broadcast(update)
}

// WriteTelemetry queues one update per sample and reports how many were dropped.
func (h *Hub) WriteTelemetry(_ context.Context, telemetry []*models.Telemetry) error {
	var dropped int
	for _, t := range telemetry {
		err := h.Broadcast(VehicleUpdate{
			DeviceID:   t.DeviceID,
			ProviderID: t.ProviderID,
			UpdateType: UpdateTypeTelemetry,
			GPS:        t.GPS,
			Timestamp:  t.Timestamp,
		})
		if err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: dropped %d of %d telemetry updates", ErrBroadcastFull, dropped, len(telemetry))
	}
	return nil
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetClientStats returns detailed client statistics
func (h *Hub) GetClientStats() ClientStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := ClientStats{
		TotalClients: len(h.clients),
		Dropped:      h.dropped.Load(),
	}
	for _, client := range h.clients {
		if client.IsActive {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
	}
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (h *Hub) GetUpgrader() *websocket.Upgrader {
	return &h.upgrader
}

func (h *Hub) broadcastToClients(update VehicleUpdate) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, client := range h.clients {
		if !matches(client.Filters(), update) {
			continue
		}
		select {
		case client.Send <- update:
		default:
			// slow consumer; the health check removes it if it stops answering pings
			client.IsActive = false
			h.dropped.Add(1)
			logger.Warn("WebSocket client send buffer full", zap.String("client_id", client.ID))
		}
	}
}

// matches reports whether update passes every non-empty filter.
func matches(filters Filters, update VehicleUpdate) bool {
	if len(filters.DeviceIDs) > 0 && !contains(filters.DeviceIDs, update.DeviceID) {
		return false
	}
	if len(filters.ProviderIDs) > 0 && !contains(filters.ProviderIDs, update.ProviderID) {
		return false
	}
	// telemetry carries no state and is not excluded by a state filter
	if len(filters.States) > 0 && update.State != "" && !contains(filters.States, string(update.State)) {
		return false
	}
	return true
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
		logger.Info("WebSocket client unregistered", zap.String("client_id", client.ID))
	}
}

// handleClient reads filter updates and pongs until the connection fails.
func (h *Hub) handleClient(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		h.mutex.Lock()
		client.LastPing = time.Now()
		client.IsActive = true
		h.mutex.Unlock()
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.writeMessages(client)

	for {
		var message struct {
			Type    string          `json:"type"`
			Filters json.RawMessage `json:"filters"`
		}
		if err := client.Conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}

		if message.Type != MessageTypeUpdateFilters {
			continue
		}
		var filters Filters
		if err := json.Unmarshal(message.Filters, &filters); err != nil {
			logger.Debug("Ignoring malformed filters", zap.String("client_id", client.ID), zap.Error(err))
			continue
		}
		client.SetFilters(filters)
		logger.Debug("Updated client filters", zap.String("client_id", client.ID))
	}
}

func (h *Hub) writeMessages(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(map[string]interface{}{
				"type": MessageTypeVehicleUpdate,
				"data": update,
			}); err != nil {
				logger.Warn("WebSocket write failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("WebSocket ping failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		}
	}
}

// healthCheck removes clients that have not answered a ping recently
func (h *Hub) healthCheck() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := time.Now()
	for clientID, client := range h.clients {
		if now.Sub(client.LastPing) > clientTimeout {
			logger.Info("WebSocket client timed out", zap.String("client_id", clientID))
			delete(h.clients, clientID)
			close(client.Send)
			if client.Conn != nil {
				client.Conn.Close()
			}
		}
	}
}
