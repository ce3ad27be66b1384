package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-gateway/internal/models"
	"messaging-gateway/internal/observability"
)

// Hub is the publish-to-named-channel primitive. Every admitted
// connection joins the personal channel of its identity; group-scoped
// channels exist only for typing indicators. Group messages are fanned
// out by callers into per-member personal-channel publishes.
type Hub struct {
	users  map[int]map[*websocket.Conn]ConnInfo
	groups map[int]map[*websocket.Conn]int
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		users:  make(map[int]map[*websocket.Conn]ConnInfo),
		groups: make(map[int]map[*websocket.Conn]int),
	}
}

// AddClient joins a connection to its identity's personal channel.
func (h *Hub) AddClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.users[userID][conn] = info
}

// RemoveClient removes a connection from its personal channel and from
// every group typing channel it joined.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	for groupID, conns := range h.groups {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.groups, groupID)
		}
	}
}

// JoinGroupChannel subscribes a connection to a group's typing channel.
func (h *Hub) JoinGroupChannel(groupID int, conn *websocket.Conn, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[groupID]; !ok {
		h.groups[groupID] = make(map[*websocket.Conn]int)
	}
	h.groups[groupID][conn] = userID
}

// SendToUser publishes an event to one identity's personal channel.
func (h *Hub) SendToUser(userID int, event models.GatewayEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.users[userID]))
	for conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	h.write(userID, conns, event)
}

// SendToConn publishes an event to a single connection. Used to seed a
// newly admitted connection with state only it needs.
func (h *Hub) SendToConn(userID int, conn *websocket.Conn, event models.GatewayEvent) {
	h.write(userID, []*websocket.Conn{conn}, event)
}

// BroadcastAll publishes an event to every connected peer.
func (h *Hub) BroadcastAll(event models.GatewayEvent) {
	h.mu.RLock()
	targets := make(map[int][]*websocket.Conn, len(h.users))
	for userID, conns := range h.users {
		for conn := range conns {
			targets[userID] = append(targets[userID], conn)
		}
	}
	h.mu.RUnlock()

	for userID, conns := range targets {
		h.write(userID, conns, event)
	}
}

// BroadcastToGroupChannel publishes to every connection subscribed to a
// group's typing channel, except the originating connection.
func (h *Hub) BroadcastToGroupChannel(groupID int, except *websocket.Conn, event models.GatewayEvent) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]int, len(h.groups[groupID]))
	for conn, userID := range h.groups[groupID] {
		if conn != except {
			targets[conn] = userID
		}
	}
	h.mu.RUnlock()

	for conn, userID := range targets {
		h.write(userID, []*websocket.Conn{conn}, event)
	}
}

func (h *Hub) write(userID int, conns []*websocket.Conn, event models.GatewayEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(userID, conn, err)
			h.RemoveClient(userID, conn)
		}
	}
}

func (h *Hub) publishWSError(userID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(userID, conn)
	if !ok {
		return
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.gateway", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload(info, "ws_error", time.Since(info.ConnectedAt).Milliseconds(), err.Error()),
	}, headers)
	observability.IncWSEvent("gateway", "ws_error")
}

func (h *Hub) getConnInfo(userID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conns, ok := h.users[userID]; ok {
		info, exists := conns[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsEventPayload(info ConnInfo, event string, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "gateway",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
