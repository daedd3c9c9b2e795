package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mds-backend/internal/models"
)

// Filters narrows the updates a client receives. Empty lists match everything.
type Filters struct {
	DeviceIDs   []string `json:"device_ids,omitempty"`
	ProviderIDs []string `json:"provider_ids,omitempty"`
	States      []string `json:"states,omitempty"`
}

// VehicleUpdate is pushed to live subscribers for every accepted record.
type VehicleUpdate struct {
	DeviceID   string              `json:"device_id"`
	ProviderID string              `json:"provider_id"`
	UpdateType string              `json:"update_type"`
	State      models.VehicleState `json:"state,omitempty"`
	EventTypes []models.EventType  `json:"event_types,omitempty"`
	GPS        *models.GPS         `json:"gps,omitempty"`
	Timestamp  int64               `json:"timestamp"`
}

// Client is one live subscriber.
type Client struct {
	ID         string
	ProviderID string
	Conn       *websocket.Conn
	Send       chan VehicleUpdate
	LastPing   time.Time
	IsActive   bool

	// scope pins ProviderIDs for provider-scoped subscribers; empty means unrestricted.
	scope   string
	mu      sync.RWMutex
	filters Filters
}

func (c *Client) Filters() Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters
}

// SetFilters replaces the client's filters. A scoped client always keeps its provider
// restriction, whatever the requested ProviderIDs.
func (c *Client) SetFilters(filters Filters) {
	if c.scope != "" {
		filters.ProviderIDs = []string{c.scope}
	}
	c.mu.Lock()
	c.filters = filters
	c.mu.Unlock()
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int   `json:"total_clients"`
	ActiveClients   int   `json:"active_clients"`
	InactiveClients int   `json:"inactive_clients"`
	Dropped         int64 `json:"dropped"`
}

// Message types for WebSocket communication
const (
	MessageTypeVehicleUpdate = "vehicle_update"
	MessageTypeUpdateFilters = "update_filters"
	MessageTypeError         = "error"
)

// Update types
const (
	UpdateTypeDevice    = "device"
	UpdateTypeEvent     = "event"
	UpdateTypeTelemetry = "telemetry"
)
