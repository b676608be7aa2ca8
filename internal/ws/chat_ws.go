package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"research-chat/internal/identity"
	"research-chat/internal/models"
	"research-chat/internal/observability"
)

// GroupLister returns the groups a user belongs to; satisfied by repositories.GroupRepository.
type GroupLister interface {
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Handler authenticates and upgrades realtime connections.
type Handler struct {
	hub      *Hub
	router   *Router
	resolver identity.Resolver
	groups   GroupLister
	log      *zap.Logger
	// ctx outlives the handshake request; connections use it for their lifetime.
	ctx context.Context
}

// NewHandler constructs a Handler. ctx bounds every connection it accepts.
func NewHandler(ctx context.Context, hub *Hub, router *Router, resolver identity.Resolver, groups GroupLister, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{ctx: ctx, hub: hub, router: router, resolver: resolver, groups: groups, log: log}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, admits it into its rooms and starts its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("research-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	principal, authErr := h.resolver.Resolve(ctx, tokenFromRequest(c.Request))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      principal.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	if authErr != nil {
		reject(conn, "authentication error")
		publishLifecycle(ctx, info, "ws_error", "authentication error")
		return
	}

	client := newClient(h.hub, conn, info)
	if !h.hub.Register(client) {
		reject(conn, "server shutting down")
		return
	}
	// Groups are listed only after Register so an AddMember racing the
	// handshake either shows up here or reaches the client through JoinUser.
	groupIDs, err := h.groups.ListGroupIDsForUser(ctx, principal.ID)
	if err != nil {
		h.log.Error("ws list groups", zap.String("user_id", principal.ID), zap.Error(err))
		h.hub.Unregister(client)
		reject(conn, "internal error")
		return
	}
	for _, id := range groupIDs {
		h.hub.Join(client, models.GroupRoom(id))
	}
	publishLifecycle(ctx, info, "ws_connect", "")

	go client.writePump()
	go client.readPump(h.ctx, h.router)
}

// reject sends an error frame and closes with a policy violation.
func reject(conn *websocket.Conn, msg string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteJSON(models.Event{Event: models.EventError, Data: models.ErrorPayload{Message: msg}})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), deadline)
	conn.Close()
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if token, ok := identity.BearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return ""
}
