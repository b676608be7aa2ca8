package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"research-chat/internal/models"
	"research-chat/internal/observability"
)

type clientSet map[*Client]struct{}

// Hub owns every live connection, the user index and the room index.
// Connect and disconnect are serialized through Run; emits take the read lock.
type Hub struct {
	presence PresenceStore
	log      *zap.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients clientSet
	users   map[string]clientSet
	rooms   map[string]clientSet
}

// NewHub creates an empty hub.
func NewHub(presence PresenceStore, log *zap.Logger) *Hub {
	if presence == nil {
		presence = NewMemoryPresence()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		presence:   presence,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(clientSet),
		users:      make(map[string]clientSet),
		rooms:      make(map[string]clientSet),
	}
}

// Run processes connects and disconnects until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll(context.Background())
			return
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(ctx, c)
		}
	}
}

// Register admits c and returns once c is indexed under its user, so a
// JoinUser issued afterwards reaches it. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
	case <-h.done:
		return false
	}
	<-c.admitted
	return true
}

// Unregister removes c; calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	userID := c.info.UserID
	if h.users[userID] == nil {
		h.users[userID] = make(clientSet)
	}
	h.users[userID][c] = struct{}{}
	h.joinLocked(c, models.UserRoom(userID))
	h.mu.Unlock()
	close(c.admitted)

	if _, err := h.presence.Add(ctx, userID); err != nil {
		h.log.Warn("presence add failed", zap.String("user_id", userID), zap.Error(err))
	}
	observability.IncWSActive()
	h.log.Debug("ws client registered", zap.String("user_id", userID), zap.String("conn_id", c.info.ConnID))
	h.broadcastPresence(ctx)
}

func (h *Hub) remove(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.dropLocked(c)
	h.mu.Unlock()

	if _, err := h.presence.Remove(ctx, c.info.UserID); err != nil {
		h.log.Warn("presence remove failed", zap.String("user_id", c.info.UserID), zap.Error(err))
	}
	observability.DecWSActive()
	h.log.Debug("ws client unregistered", zap.String("user_id", c.info.UserID), zap.String("conn_id", c.info.ConnID))
	h.broadcastPresence(ctx)
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	closed := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		h.dropLocked(c)
		closed = append(closed, c)
	}
	h.mu.Unlock()

	for _, c := range closed {
		if _, err := h.presence.Remove(ctx, c.info.UserID); err != nil {
			h.log.Warn("presence remove failed", zap.String("user_id", c.info.UserID), zap.Error(err))
		}
		observability.DecWSActive()
	}
}

// dropLocked detaches c from every index and closes its send queue.
func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	if set, ok := h.users[c.info.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.info.UserID)
		}
	}
	close(c.send)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(clientSet)
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) broadcastPresence(ctx context.Context) {
	ids, err := h.presence.Online(ctx)
	if err != nil {
		h.log.Warn("presence list failed", zap.Error(err))
		return
	}
	observability.SetOnlineUsers(len(ids))

	payload, err := json.Marshal(models.Event{Event: models.EventOnlineUsers, Data: ids})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.enqueue(c, payload)
	}
}

// Emit delivers ev once to every connection in any of rooms.
func (h *Hub) Emit(rooms []string, ev models.Event) {
	h.emit(rooms, ev, "")
}

// EmitExcept is Emit without the connections of exceptUserID.
func (h *Hub) EmitExcept(rooms []string, ev models.Event, exceptUserID string) {
	h.emit(rooms, ev, exceptUserID)
}

func (h *Hub) emit(rooms []string, ev models.Event, exceptUserID string) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(clientSet)
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			if exceptUserID != "" && c.info.UserID == exceptUserID {
				continue
			}
			h.enqueue(c, payload)
		}
	}
}

// enqueue must run under h.mu so the queue cannot be closed concurrently.
func (h *Hub) enqueue(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		observability.IncWSDroppedFrame()
		h.log.Warn("ws send buffer full, frame dropped", zap.String("user_id", c.info.UserID), zap.String("conn_id", c.info.ConnID))
	}
}

// JoinUser adds every live connection of userID to room.
func (h *Hub) JoinUser(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.joinLocked(c, room)
	}
}

// LeaveUser removes every live connection of userID from room.
func (h *Hub) LeaveUser(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.leaveLocked(c, room)
	}
}

// Join adds a single connection to room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinLocked(c, room)
}

// InRoom reports whether c currently receives room's events.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Send delivers ev to a single connection.
func (h *Hub) Send(c *Client, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.enqueue(c, payload)
}

// OnlineUsers lists the user ids with at least one live connection.
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	return h.presence.Online(ctx)
}

// Connections returns how many live connections userID has on this node.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
