package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to dashboards.
type Message struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      int64          `json:"id,omitempty"`
	ChildID int64          `json:"child_id,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	msg := Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
	if cid, ok := extra["child_id"].(int64); ok {
		msg.ChildID = cid
	}
	return msg
}

// Hub tracks connected clients grouped by the parent account they belong to.
// Messages never cross from one owner to another.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to its owner's group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	group, ok := h.clients[c.ownerID]
	if !ok {
		group = make(map[*Client]struct{})
		h.clients[c.ownerID] = group
	}
	group[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if group, ok := h.clients[c.ownerID]; ok {
		if _, ok := group[c]; ok {
			delete(group, c)
			close(c.send)
		}
		if len(group) == 0 {
			delete(h.clients, c.ownerID)
		}
	}
	h.mu.Unlock()
}

// Notify implements points.Notifier.
func (h *Hub) Notify(ownerID int64, entity, action string, id int64, extra map[string]any) {
	h.BroadcastTo(ownerID, NewMessage(entity, action, id, extra))
}

// BroadcastTo sends msg to every client of ownerID. Child clients only get
// messages about themselves or about no child in particular.
func (h *Hub) BroadcastTo(ownerID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[ownerID] {
		if c.childID != 0 && msg.ChildID != 0 && c.childID != msg.ChildID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client", "owner_id", ownerID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients across all owners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.clients {
		n += len(group)
	}
	return n
}
