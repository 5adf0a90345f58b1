package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/plantcare/internal/model"
)

const typePlantsSnapshot = "plants_snapshot"

// Message is one frame of the live plant feed. HouseholdID is null for the
// user's private plants.
type Message struct {
	Type        string        `json:"type"`
	HouseholdID *string       `json:"householdId"`
	Plants      []model.Plant `json:"plants"`
}

// NewSnapshot builds the frame for a plant list. An empty householdID means
// the private view.
func NewSnapshot(householdID string, plants []model.Plant) Message {
	msg := Message{Type: typePlantsSnapshot, Plants: plants}
	if householdID != "" {
		msg.HouseholdID = &householdID
	}
	if msg.Plants == nil {
		msg.Plants = []model.Plant{}
	}
	return msg
}

func encodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	return data, nil
}

// Hub tracks the connected live-feed clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll ends every connected client. Used on shutdown; clients unregister
// themselves as their connections wind down.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		c.stop()
	}
	if n := len(h.clients); n > 0 {
		h.logger.Info("closing live feed clients", "count", n)
	}
}
