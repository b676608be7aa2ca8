package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"research-chat/chatapi"
)

// API is the subset of Client the controller drives.
type API interface {
	ListChats(ctx context.Context) (chatapi.ChatList, error)
	ListMessages(ctx context.Context, ref chatapi.ChatRef) ([]chatapi.MessageView, error)
	SendMessage(ctx context.Context, ref chatapi.ChatRef, content string) (chatapi.MessageView, error)
	UploadFile(ctx context.Context, ref chatapi.ChatRef, filename string, r io.Reader) (chatapi.MessageView, error)
	DeleteMessage(ctx context.Context, messageID string) (chatapi.MessageView, error)
	Dial(ctx context.Context) (*websocket.Conn, error)
}

type Config struct {
	PollInterval  time.Duration
	TypingTimeout time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	OnNotice      func(msg string)
	OnChange      func()
	Now           func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 3 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Focus is the open conversation. PeerID is the other participant of a direct chat.
type Focus struct {
	Ref    chatapi.ChatRef
	PeerID string
}

// chatKey is how realtime events name a conversation: the group id, or the
// peer's user id for a direct chat.
func (f Focus) chatKey() string {
	if f.Ref.Type == chatapi.ChatTypeDirect {
		return f.PeerID
	}
	return f.Ref.ID
}

// Controller keeps the local view of chats and the focused conversation in
// step with the server. Realtime delivery is best effort; polling heals gaps.
type Controller struct {
	api API
	cfg Config

	mu          sync.Mutex
	directChats []chatapi.DirectChatView
	groupChats  []chatapi.GroupView
	focus       *Focus
	generation  uint64
	messages    []chatapi.MessageView
	online      []string
	typing      map[string]map[string]time.Time

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func NewController(api API, cfg Config) *Controller {
	return &Controller{
		api:    api,
		cfg:    cfg.withDefaults(),
		typing: make(map[string]map[string]time.Time),
	}
}

func (c *Controller) notice(msg string) {
	if c.cfg.OnNotice != nil {
		c.cfg.OnNotice(msg)
	}
}

func (c *Controller) changed() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

// Refresh reloads the chat lists.
func (c *Controller) Refresh(ctx context.Context) error {
	list, err := c.api.ListChats(ctx)
	if err != nil {
		c.notice("could not load chats")
		return err
	}
	c.mu.Lock()
	c.directChats = list.DirectChats
	c.groupChats = list.GroupChats
	c.mu.Unlock()
	c.changed()
	return nil
}

// Open focuses a conversation. The previous message list is dropped before
// the fetch so stale messages are never shown under the new focus.
func (c *Controller) Open(ctx context.Context, focus Focus) error {
	c.mu.Lock()
	c.focus = &focus
	c.generation++
	gen := c.generation
	c.messages = nil
	c.mu.Unlock()
	c.changed()

	if focus.Ref.Type == chatapi.ChatTypeGroup {
		c.emit(chatapi.Event{Event: chatapi.EventJoinGroup, Data: focus.Ref.ID})
	}
	return c.reload(ctx, gen, true)
}

// Close clears the focus.
func (c *Controller) Close() {
	c.mu.Lock()
	c.focus = nil
	c.generation++
	c.messages = nil
	c.mu.Unlock()
	c.changed()
}

// reload fetches the focused conversation unless the focus moved meanwhile.
// Fetched messages win over local copies with the same id; local messages the
// fetch does not contain yet are kept.
func (c *Controller) reload(ctx context.Context, gen uint64, notify bool) error {
	c.mu.Lock()
	if c.focus == nil || c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	ref := c.focus.Ref
	c.mu.Unlock()

	msgs, err := c.api.ListMessages(ctx, ref)
	if err != nil {
		if notify {
			c.notice("could not load messages")
		}
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil
	}
	c.messages = sortedByCreation(union(msgs, c.messages))
	c.mu.Unlock()
	c.changed()
	return nil
}

func union(fetched, local []chatapi.MessageView) []chatapi.MessageView {
	seen := make(map[string]struct{}, len(fetched))
	out := append([]chatapi.MessageView(nil), fetched...)
	for _, m := range fetched {
		seen[m.ID] = struct{}{}
	}
	for _, m := range local {
		if _, ok := seen[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func sortedByCreation(msgs []chatapi.MessageView) []chatapi.MessageView {
	out := append([]chatapi.MessageView(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Send posts a text message to the focused conversation. Failures are
// reported as a notice and leave local state untouched; nothing is retried.
func (c *Controller) Send(ctx context.Context, content string) error {
	ref, ok := c.focusedRef()
	if !ok {
		return errors.New("no conversation open")
	}
	msg, err := c.api.SendMessage(ctx, ref, content)
	if err != nil {
		c.notice("message not sent")
		return err
	}
	c.merge(msg)
	return nil
}

// Upload shares a file in the focused conversation.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) error {
	ref, ok := c.focusedRef()
	if !ok {
		return errors.New("no conversation open")
	}
	msg, err := c.api.UploadFile(ctx, ref, filename, r)
	if err != nil {
		c.notice("file not shared")
		return err
	}
	c.merge(msg)
	return nil
}

// Delete soft-deletes one of the caller's messages.
func (c *Controller) Delete(ctx context.Context, messageID string) error {
	if _, err := c.api.DeleteMessage(ctx, messageID); err != nil {
		c.notice("message not deleted")
		return err
	}
	c.markDeleted(messageID)
	return nil
}

// Typing tells the other side of the focused conversation that the user is typing.
func (c *Controller) Typing() {
	c.mu.Lock()
	focus := c.focus
	c.mu.Unlock()
	if focus == nil {
		return
	}
	target := map[string]string{"chatType": string(focus.Ref.Type)}
	if focus.Ref.Type == chatapi.ChatTypeGroup {
		target["groupId"] = focus.Ref.ID
	} else {
		target["recipientId"] = focus.PeerID
	}
	c.emit(chatapi.Event{Event: chatapi.EventTyping, Data: target})
}

func (c *Controller) focusedRef() (chatapi.ChatRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focus == nil {
		return chatapi.ChatRef{}, false
	}
	return c.focus.Ref, true
}

// merge appends msg to the focused list unless a message with its id is
// already present, and refreshes the list preview either way.
func (c *Controller) merge(msg chatapi.MessageView) {
	c.mu.Lock()
	if c.focus != nil && c.focus.Ref.Type == msg.ChatType && c.focus.Ref.ID == msg.ChatID {
		found := false
		for _, m := range c.messages {
			if m.ID == msg.ID {
				found = true
				break
			}
		}
		if !found {
			c.messages = append(c.messages, msg)
		}
	}
	c.setPreview(msg)
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) setPreview(msg chatapi.MessageView) {
	preview := msg
	switch msg.ChatType {
	case chatapi.ChatTypeDirect:
		for i := range c.directChats {
			if c.directChats[i].ID == msg.ChatID {
				c.directChats[i].LastMessage = &preview
			}
		}
	case chatapi.ChatTypeGroup:
		for i := range c.groupChats {
			if c.groupChats[i].ID == msg.ChatID {
				c.groupChats[i].LastMessage = &preview
			}
		}
	}
}

func (c *Controller) markDeleted(messageID string) {
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].IsDeleted = true
			c.messages[i].Content = chatapi.DeletedMessagePlaceholder
		}
	}
	for i := range c.directChats {
		c.directChats[i].LastMessage = deletedPreview(c.directChats[i].LastMessage, messageID)
	}
	for i := range c.groupChats {
		c.groupChats[i].LastMessage = deletedPreview(c.groupChats[i].LastMessage, messageID)
	}
	c.mu.Unlock()
	c.changed()
}

// deletedPreview returns a patched copy so snapshots handed out earlier stay unchanged.
func deletedPreview(lm *chatapi.MessageView, messageID string) *chatapi.MessageView {
	if lm == nil || lm.ID != messageID {
		return lm
	}
	patched := *lm
	patched.IsDeleted = true
	patched.Content = chatapi.DeletedMessagePlaceholder
	return &patched
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandleFrame applies one realtime frame to local state.
func (c *Controller) HandleFrame(raw []byte) {
	var ev inbound
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	switch ev.Event {
	case chatapi.EventReceiveMessage:
		var msg chatapi.MessageView
		if json.Unmarshal(ev.Data, &msg) == nil && msg.ID != "" {
			c.merge(msg)
		}
	case chatapi.EventMessageDeleted:
		var id string
		if json.Unmarshal(ev.Data, &id) == nil && id != "" {
			c.markDeleted(id)
		}
	case chatapi.EventOnlineUsers:
		var ids []string
		if json.Unmarshal(ev.Data, &ids) == nil {
			c.mu.Lock()
			c.online = ids
			c.mu.Unlock()
			c.changed()
		}
	case chatapi.EventUserTyping:
		var p chatapi.TypingPayload
		if json.Unmarshal(ev.Data, &p) == nil && p.ChatID != "" {
			c.mu.Lock()
			if c.typing[p.ChatID] == nil {
				c.typing[p.ChatID] = make(map[string]time.Time)
			}
			c.typing[p.ChatID][p.UserID] = c.cfg.Now()
			c.mu.Unlock()
			c.changed()
		}
	case chatapi.EventError:
		var p chatapi.ErrorPayload
		if json.Unmarshal(ev.Data, &p) == nil && p.Message != "" {
			c.notice(p.Message)
		}
	}
}

// Messages returns a copy of the focused conversation, oldest first.
func (c *Controller) Messages() []chatapi.MessageView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatapi.MessageView(nil), c.messages...)
}

func (c *Controller) DirectChats() []chatapi.DirectChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatapi.DirectChatView(nil), c.directChats...)
}

func (c *Controller) GroupChats() []chatapi.GroupView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatapi.GroupView(nil), c.groupChats...)
}

func (c *Controller) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.online...)
}

// TypingIn lists who is typing in the focused conversation. Signals expire
// on their own after TypingTimeout.
func (c *Controller) TypingIn() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focus == nil {
		return nil
	}
	key := c.focus.chatKey()
	now := c.cfg.Now()
	var users []string
	for userID, at := range c.typing[key] {
		if now.Sub(at) < c.cfg.TypingTimeout {
			users = append(users, userID)
		} else {
			delete(c.typing[key], userID)
		}
	}
	sort.Strings(users)
	return users
}

// Run keeps the realtime connection up and polls the focused conversation
// until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	go c.poll(ctx)
	c.connect(ctx)
}

func (c *Controller) poll(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			gen := c.generation
			c.mu.Unlock()
			// failures are expected while offline and stay silent
			_ = c.reload(ctx, gen, false)
		}
	}
}

func (c *Controller) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.ReconnectMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Controller) connect(ctx context.Context) {
	b := c.newBackOff()
	for {
		conn, err := c.api.Dial(ctx)
		if err == nil {
			b.Reset()
			c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.NextBackOff()):
		}
	}
}

// serve owns conn until it fails or ctx ends.
func (c *Controller) serve(ctx context.Context, conn *websocket.Conn) {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		conn.Close()
	}()

	c.mu.Lock()
	focus := c.focus
	c.mu.Unlock()
	if focus != nil && focus.Ref.Type == chatapi.ChatTypeGroup {
		c.emit(chatapi.Event{Event: chatapi.EventJoinGroup, Data: focus.Ref.ID})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.HandleFrame(raw)
	}
}

// emit writes ev if connected; realtime signals are dropped while offline.
func (c *Controller) emit(ev chatapi.Event) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = c.conn.WriteJSON(ev)
}
