package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-gateway/internal/auth"
	"messaging-gateway/internal/messaging"
	"messaging-gateway/internal/models"
	"messaging-gateway/internal/observability"
	"messaging-gateway/internal/repositories"
	"messaging-gateway/internal/telemetry"
)

// Attachments arrive inline as base64, so the read limit has to admit
// whole files.
const maxMessageSize = 16 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// GatewayHandler admits websocket connections and drives the inbound
// event loop. The identity bound at admission is immutable for the
// connection's lifetime and is the authorization subject of every
// operation on it.
type GatewayHandler struct {
	hub      *Hub
	presence *PresenceTracker
	verifier *auth.Verifier
	users    repositories.UserRepository
	groups   repositories.GroupRepository
	svc      *messaging.Service
	audit    *telemetry.AuditEmitter
}

// NewGatewayHandler constructs a GatewayHandler.
func NewGatewayHandler(
	hub *Hub,
	presence *PresenceTracker,
	verifier *auth.Verifier,
	users repositories.UserRepository,
	groups repositories.GroupRepository,
	svc *messaging.Service,
	audit *telemetry.AuditEmitter,
) *GatewayHandler {
	return &GatewayHandler{
		hub:      hub,
		presence: presence,
		verifier: verifier,
		users:    users,
		groups:   groups,
		svc:      svc,
		audit:    audit,
	}
}

// Handle validates the bearer credential, upgrades the connection and
// registers the client. Invalid or missing credentials are refused
// before any state mutation.
func (h *GatewayHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxMessageSize)

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	h.hub.AddClient(userID, conn, info)
	h.joinGroupChannels(userID, conn)
	h.admitPresence(userID, conn)

	observability.IncWSActive("gateway")
	observability.IncWSEvent("gateway", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.gateway", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(info, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go h.readLoop(ctx, userID, conn, info)
}

func (h *GatewayHandler) authenticate(c *gin.Context) (int, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	parts := strings.Split(token, " ")
	if len(parts) != 2 {
		return 0, auth.ErrInvalidToken
	}
	return h.verifier.Verify(parts[1])
}

// joinGroupChannels subscribes the connection to the typing channel of
// every group its identity belongs to.
func (h *GatewayHandler) joinGroupChannels(userID int, conn *websocket.Conn) {
	groupIDs, err := h.groups.ListGroupIDsForUser(context.Background(), userID)
	if err != nil {
		log.Printf("list groups for user %d: %v", userID, err)
		return
	}
	for _, groupID := range groupIDs {
		h.hub.JoinGroupChannel(groupID, conn, userID)
	}
}

// admitPresence records the connection, broadcasts the online
// transition when this is the identity's first connection, and seeds
// the new connection with the full current online set.
func (h *GatewayHandler) admitPresence(userID int, conn *websocket.Conn) {
	cameOnline := h.presence.Connect(userID)
	online := h.presence.OnlineUsers()
	observability.SetOnlineIdentities(len(online))

	if cameOnline {
		if err := h.users.SetPresence(context.Background(), userID, "online", nil); err != nil {
			log.Printf("persist online status for user %d: %v", userID, err)
		}
		h.hub.BroadcastAll(models.GatewayEvent{Event: models.EvUserOnline, Data: map[string]any{"userId": userID}})
	}

	h.hub.SendToConn(userID, conn, models.GatewayEvent{Event: models.EvOnlineUsers, Data: map[string]any{"userIds": online}})
}

func (h *GatewayHandler) readLoop(ctx context.Context, userID int, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(userID, conn)
		h.dropPresence(userID)

		observability.DecWSActive("gateway")
		observability.IncWSEvent("gateway", "ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.gateway", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   wsEventPayload(info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
		}, observability.BuildHeaders(info.RequestID, info.TraceID))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("gateway", "ws_error")
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("malformed event from user %d: %v", userID, err)
			observability.IncGatewayEvent("malformed", "dropped")
			continue
		}
		h.dispatch(userID, conn, event, info)
	}
}

// dropPresence handles the disconnect side of the presence transition:
// offline is persisted and broadcast only when the last connection of
// the identity closes.
func (h *GatewayHandler) dropPresence(userID int) {
	wentOffline := h.presence.Disconnect(userID)
	observability.SetOnlineIdentities(len(h.presence.OnlineUsers()))
	if !wentOffline {
		return
	}

	lastSeen := time.Now().UTC()
	if err := h.users.SetPresence(context.Background(), userID, "offline", &lastSeen); err != nil {
		log.Printf("persist offline status for user %d: %v", userID, err)
	}
	h.hub.BroadcastAll(models.GatewayEvent{Event: models.EvUserOffline, Data: map[string]any{
		"userId":   userID,
		"lastSeen": lastSeen,
	}})
}

// dispatch decodes an inbound event and runs the matching lifecycle
// operation. Failures are logged and dropped: the event channel is
// fire-and-forget, no error is surfaced to the caller.
func (h *GatewayHandler) dispatch(userID int, conn *websocket.Conn, event models.ClientEvent, info ConnInfo) {
	ctx := context.Background()
	var err error

	switch event.Event {
	case models.EvPrivateMessage:
		var in models.PrivateMessageIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.SendDirect(ctx, userID, in)
		}
	case models.EvGroupMessage:
		var in models.GroupMessageIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.SendGroup(ctx, userID, in)
		}
	case models.EvFileSend:
		var in models.FileSendIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.SendDirectFile(ctx, userID, in)
		}
	case models.EvGroupFileSend:
		var in models.GroupFileSendIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.SendGroupFile(ctx, userID, in)
		}
	case models.EvTyping:
		var in models.TypingIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			h.routeTyping(userID, conn, in)
		}
	case models.EvMarkRead:
		var in models.MarkReadIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.MarkRead(ctx, userID, in.MessageID)
		}
	case models.EvMarkGroupRead:
		var in models.MarkGroupReadIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.MarkGroupRead(ctx, userID, in.GroupMessageID)
		}
	case models.EvDeleteDirect:
		var in models.DeleteDirectIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.DeleteDirect(ctx, userID, in)
		}
	case models.EvDeleteGroup:
		var in models.DeleteGroupIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.DeleteGroup(ctx, userID, in)
		}
	case models.EvUpdateMessage:
		var in models.UpdateMessageIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.EditDirect(ctx, userID, in)
		}
	case models.EvUpdateGroupMessage:
		var in models.UpdateGroupMessageIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.EditGroup(ctx, userID, in)
		}
	case models.EvAddReaction:
		var in models.ReactionIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.AddReaction(ctx, userID, in)
		}
	case models.EvRemoveReaction:
		var in models.ReactionIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.RemoveReaction(ctx, userID, in)
		}
	case models.EvForwardMessage:
		var in models.ForwardIn
		if err = json.Unmarshal(event.Data, &in); err == nil {
			err = h.svc.Forward(ctx, userID, in)
		}
	default:
		log.Printf("unknown event %q from user %d", event.Event, userID)
		observability.IncGatewayEvent(event.Event, "unknown")
		return
	}

	if err != nil {
		log.Printf("event %s from user %d dropped: %v", event.Event, userID, err)
		observability.IncGatewayEvent(event.Event, "dropped")
		h.emitAudit(ctx, userID, event.Event, err, info)
		return
	}
	observability.IncGatewayEvent(event.Event, "ok")
}

// routeTyping is route-only, no persistence. Direct typing addresses
// the peer's personal channel; group typing addresses the group's
// typing channel minus the sender.
func (h *GatewayHandler) routeTyping(userID int, conn *websocket.Conn, in models.TypingIn) {
	if in.GroupID != 0 {
		h.hub.BroadcastToGroupChannel(in.GroupID, conn, models.GatewayEvent{Event: models.EvTyping, Data: map[string]any{
			"groupId": in.GroupID,
			"from":    userID,
		}})
		return
	}
	if in.ToUserID != 0 {
		h.hub.SendToUser(in.ToUserID, models.GatewayEvent{Event: models.EvTyping, Data: map[string]any{"from": userID}})
	}
}

func (h *GatewayHandler) emitAudit(ctx context.Context, userID int, event string, err error, info ConnInfo) {
	if h.audit == nil {
		return
	}
	uid := strconv.Itoa(userID)
	h.audit.Emit(ctx, "ERROR", event+" dropped: "+err.Error(), info.RequestID, &uid)
}
