package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-chat/chatapi"
)

type fakeAPI struct {
	mu       sync.Mutex
	chats    chatapi.ChatList
	messages map[string][]chatapi.MessageView
	// gates, when set for a chat id, blocks ListMessages until closed.
	gates     map[string]chan struct{}
	sent      chatapi.MessageView
	sendErr   error
	deleteErr error
	listCalls int
	dial      func(ctx context.Context) (*websocket.Conn, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messages: make(map[string][]chatapi.MessageView),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) setMessages(chatID string, msgs ...chatapi.MessageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[chatID] = msgs
}

func (f *fakeAPI) ListChats(ctx context.Context) (chatapi.ChatList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, ref chatapi.ChatRef) ([]chatapi.MessageView, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.gates[ref.ID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatapi.MessageView(nil), f.messages[ref.ID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, ref chatapi.ChatRef, content string) (chatapi.MessageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.sendErr
}

func (f *fakeAPI) UploadFile(ctx context.Context, ref chatapi.ChatRef, filename string, r io.Reader) (chatapi.MessageView, error) {
	return chatapi.MessageView{}, errors.New("upload unavailable")
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, messageID string) (chatapi.MessageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return chatapi.MessageView{ID: messageID, IsDeleted: true}, f.deleteErr
}

func (f *fakeAPI) Dial(ctx context.Context) (*websocket.Conn, error) {
	if f.dial == nil {
		return nil, errors.New("offline")
	}
	return f.dial(ctx)
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id, chatID string, chatType chatapi.ChatType, offset time.Duration) chatapi.MessageView {
	return chatapi.MessageView{
		ID:        id,
		Sender:    chatapi.UserRef{ID: "bob", Name: "Bob"},
		Content:   "hello " + id,
		ChatType:  chatType,
		ChatID:    chatID,
		CreatedAt: t0.Add(offset),
	}
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(chatapi.Event{Event: event, Data: data})
	require.NoError(t, err)
	return raw
}

func ids(msgs []chatapi.MessageView) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

var (
	directFocus = Focus{Ref: chatapi.ChatRef{Type: chatapi.ChatTypeDirect, ID: "c1"}, PeerID: "bob"}
	groupFocus  = Focus{Ref: chatapi.ChatRef{Type: chatapi.ChatTypeGroup, ID: "g1"}}
)

func TestOpenSortsMessagesOldestFirst(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1",
		msg("m2", "c1", chatapi.ChatTypeDirect, 2*time.Minute),
		msg("m1", "c1", chatapi.ChatTypeDirect, time.Minute),
	)
	c := NewController(api, Config{})

	require.NoError(t, c.Open(context.Background(), directFocus))
	assert.Equal(t, []string{"m1", "m2"}, ids(c.Messages()))
}

func TestSendThenEchoKeepsOneCopy(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0))
	api.sent = msg("m2", "c1", chatapi.ChatTypeDirect, time.Minute)
	c := NewController(api, Config{})
	require.NoError(t, c.Open(context.Background(), directFocus))

	require.NoError(t, c.Send(context.Background(), "hi"))
	c.HandleFrame(frame(t, chatapi.EventReceiveMessage, api.sent))
	c.HandleFrame(frame(t, chatapi.EventReceiveMessage, api.sent))

	assert.Equal(t, []string{"m1", "m2"}, ids(c.Messages()))
}

func TestIncomingMessageForOtherChatOnlyUpdatesPreview(t *testing.T) {
	api := newFakeAPI()
	api.chats = chatapi.ChatList{
		DirectChats: []chatapi.DirectChatView{{ID: "c1"}},
		GroupChats:  []chatapi.GroupView{{ID: "g1"}},
	}
	c := NewController(api, Config{})
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Open(context.Background(), directFocus))

	incoming := msg("m9", "g1", chatapi.ChatTypeGroup, 0)
	c.HandleFrame(frame(t, chatapi.EventReceiveMessage, incoming))

	assert.Empty(t, c.Messages())
	groups := c.GroupChats()
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].LastMessage)
	assert.Equal(t, "m9", groups[0].LastMessage.ID)
	assert.Nil(t, c.DirectChats()[0].LastMessage)
}

func TestSwitchingFocusDiscardsStaleFetch(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("old", "c1", chatapi.ChatTypeDirect, 0))
	api.setMessages("g1", msg("new", "g1", chatapi.ChatTypeGroup, 0))
	gate := make(chan struct{})
	api.gates["c1"] = gate

	c := NewController(api, Config{})
	done := make(chan error, 1)
	go func() { done <- c.Open(context.Background(), directFocus) }()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.listCalls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Open(context.Background(), groupFocus))
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"new"}, ids(c.Messages()))
}

func TestReloadKeepsMessagesSentDuringFetch(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0))
	api.sent = msg("m2", "c1", chatapi.ChatTypeDirect, time.Minute)
	c := NewController(api, Config{})
	require.NoError(t, c.Open(context.Background(), directFocus))

	gate := make(chan struct{})
	api.mu.Lock()
	api.gates["c1"] = gate
	api.mu.Unlock()

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()
	done := make(chan error, 1)
	go func() { done <- c.reload(context.Background(), gen, false) }()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.listCalls == 2
	}, time.Second, 5*time.Millisecond)

	// the in-flight fetch still returns only m1
	require.NoError(t, c.Send(context.Background(), "hi"))
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"m1", "m2"}, ids(c.Messages()))
}

func TestOpenClearsPreviousMessagesBeforeFetch(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0))
	api.setMessages("g1", msg("g-1", "g1", chatapi.ChatTypeGroup, 0))

	var c *Controller
	var firstSeen []string
	var captured bool
	c = NewController(api, Config{OnChange: func() {
		if !captured {
			captured = true
			firstSeen = ids(c.Messages())
		}
	}})
	require.NoError(t, c.Open(context.Background(), directFocus))

	captured = false
	require.NoError(t, c.Open(context.Background(), groupFocus))

	assert.Empty(t, firstSeen)
	assert.Equal(t, []string{"g-1"}, ids(c.Messages()))
}

func TestDeletePatchesMessageAndPreview(t *testing.T) {
	api := newFakeAPI()
	m1 := msg("m1", "c1", chatapi.ChatTypeDirect, 0)
	api.setMessages("c1", m1)
	api.chats = chatapi.ChatList{DirectChats: []chatapi.DirectChatView{{ID: "c1", LastMessage: &m1}}}
	c := NewController(api, Config{})
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Open(context.Background(), directFocus))
	before := c.DirectChats()

	require.NoError(t, c.Delete(context.Background(), "m1"))

	got := c.Messages()
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeleted)
	assert.Equal(t, chatapi.DeletedMessagePlaceholder, got[0].Content)
	assert.True(t, c.DirectChats()[0].LastMessage.IsDeleted)
	assert.False(t, before[0].LastMessage.IsDeleted)
}

func TestMessageDeletedFrameMarksMessage(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0), msg("m2", "c1", chatapi.ChatTypeDirect, time.Minute))
	c := NewController(api, Config{})
	require.NoError(t, c.Open(context.Background(), directFocus))

	c.HandleFrame(frame(t, chatapi.EventMessageDeleted, "m2"))

	got := c.Messages()
	assert.False(t, got[0].IsDeleted)
	assert.True(t, got[1].IsDeleted)
}

func TestFailuresRaiseNoticesWithoutChangingState(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0))
	api.sendErr = &APIError{Status: http.StatusForbidden, Message: "not a participant"}
	api.deleteErr = &APIError{Status: http.StatusForbidden, Message: "only the sender can delete"}

	var notices []string
	c := NewController(api, Config{OnNotice: func(m string) { notices = append(notices, m) }})
	require.NoError(t, c.Open(context.Background(), directFocus))

	assert.Error(t, c.Send(context.Background(), "hi"))
	assert.Error(t, c.Delete(context.Background(), "m1"))
	assert.Error(t, c.Upload(context.Background(), "a.pdf", strings.NewReader("%PDF")))
	c.HandleFrame(frame(t, chatapi.EventError, chatapi.ErrorPayload{Message: "unknown event"}))

	assert.Equal(t, []string{"message not sent", "message not deleted", "file not shared", "unknown event"}, notices)
	got := c.Messages()
	require.Len(t, got, 1)
	assert.False(t, got[0].IsDeleted)
}

func TestSendWithoutFocusFails(t *testing.T) {
	c := NewController(newFakeAPI(), Config{})
	assert.Error(t, c.Send(context.Background(), "hi"))
}

func TestTypingIndicatorExpires(t *testing.T) {
	now := t0
	c := NewController(newFakeAPI(), Config{Now: func() time.Time { return now }})
	require.NoError(t, c.Open(context.Background(), directFocus))

	c.HandleFrame(frame(t, chatapi.EventUserTyping, chatapi.TypingPayload{UserID: "bob", ChatID: "bob"}))
	c.HandleFrame(frame(t, chatapi.EventUserTyping, chatapi.TypingPayload{UserID: "carol", ChatID: "g1"}))
	assert.Equal(t, []string{"bob"}, c.TypingIn())

	now = now.Add(2 * time.Second)
	assert.Equal(t, []string{"bob"}, c.TypingIn())

	now = now.Add(time.Second)
	assert.Empty(t, c.TypingIn())
}

func TestOnlineUsersFrameReplacesSet(t *testing.T) {
	c := NewController(newFakeAPI(), Config{})
	c.HandleFrame(frame(t, chatapi.EventOnlineUsers, []string{"alice", "bob"}))
	c.HandleFrame(frame(t, chatapi.EventOnlineUsers, []string{"bob"}))
	assert.Equal(t, []string{"bob"}, c.Online())
}

func TestPollingPicksUpMissedMessages(t *testing.T) {
	api := newFakeAPI()
	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0))
	c := NewController(api, Config{PollInterval: 10 * time.Millisecond, ReconnectBase: time.Hour})
	require.NoError(t, c.Open(context.Background(), directFocus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	api.setMessages("c1", msg("m1", "c1", chatapi.ChatTypeDirect, 0), msg("m2", "c1", chatapi.ChatTypeDirect, time.Minute))

	assert.Eventually(t, func() bool {
		return len(c.Messages()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestBackOffDoublesUpToCap(t *testing.T) {
	c := NewController(newFakeAPI(), Config{ReconnectBase: time.Second, ReconnectMax: 4 * time.Second})
	b := c.newBackOff()

	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}, got)
}

// wsServer accepts connections, records the frames they send and lets the
// test drop them.
type wsServer struct {
	srv    *httptest.Server
	frames chan inbound
	conns  chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{frames: make(chan inbound, 16), conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			var ev inbound
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			s.frames <- ev
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) nextFrame(t *testing.T) inbound {
	t.Helper()
	select {
	case ev := <-s.frames:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return inbound{}
	}
}

func (s *wsServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestReconnectRejoinsFocusedGroup(t *testing.T) {
	server := newWSServer(t)
	api := newFakeAPI()

	var mu sync.Mutex
	attempts := 0
	api.dial = func(ctx context.Context) (*websocket.Conn, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, server.url(), nil)
		return conn, err
	}

	c := NewController(api, Config{
		PollInterval:  time.Hour,
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  40 * time.Millisecond,
	})
	require.NoError(t, c.Open(context.Background(), groupFocus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	first := server.nextConn(t)
	ev := server.nextFrame(t)
	assert.Equal(t, chatapi.EventJoinGroup, ev.Event)
	assert.JSONEq(t, `"g1"`, string(ev.Data))

	require.NoError(t, first.WriteJSON(chatapi.Event{Event: chatapi.EventOnlineUsers, Data: []string{"alice"}}))
	require.Eventually(t, func() bool { return len(c.Online()) == 1 }, time.Second, 5*time.Millisecond)

	first.Close()
	server.nextConn(t)
	ev = server.nextFrame(t)
	assert.Equal(t, chatapi.EventJoinGroup, ev.Event)
	assert.JSONEq(t, `"g1"`, string(ev.Data))

	c.Typing()
	ev = server.nextFrame(t)
	assert.Equal(t, chatapi.EventTyping, ev.Event)
	assert.JSONEq(t, `{"chatType":"group","groupId":"g1"}`, string(ev.Data))
}
