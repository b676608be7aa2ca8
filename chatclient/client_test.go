package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-chat/chatapi"
)

func TestClientSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/message", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"message":{"_id":"m1","content":"hi","chatType":"group","chatId":"g1"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	m, err := c.SendMessage(context.Background(), chatapi.ChatRef{Type: chatapi.ChatTypeGroup, ID: "g1"}, "hi")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"content": "hi", "chatId": "g1", "chatType": "group"}, got)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, chatapi.ChatTypeGroup, m.ChatType)
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"success":false,"error":"only the admin can update the group"}`)
	}))
	defer srv.Close()

	name := "Renamed"
	_, err := New(srv.URL, "tok").UpdateGroup(context.Background(), "g1", chatapi.GroupUpdate{Name: &name})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "only the admin can update the group", apiErr.Message)
}

func TestClientListMessagesPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat/messages/c1/direct", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"messages":[{"_id":"m1"},{"_id":"m2"}]}`)
	}))
	defer srv.Close()

	msgs, err := New(srv.URL, "tok").ListMessages(context.Background(), chatapi.ChatRef{Type: chatapi.ChatTypeDirect, ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(msgs))
}

func TestClientUploadFileIsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/upload/g1/group", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "protocol.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.4", string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"message":{"_id":"m3","fileUrl":"/uploads/x.pdf"}}`)
	}))
	defer srv.Close()

	m, err := New(srv.URL, "tok").UploadFile(context.Background(), chatapi.ChatRef{Type: chatapi.ChatTypeGroup, ID: "g1"}, "protocol.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.pdf", m.FileURL)
}

func TestClientDialCarriesToken(t *testing.T) {
	tokens := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ws", r.URL.Path)
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	conn, err := New(srv.URL+"/api", "tok").Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "tok", <-tokens)
}
