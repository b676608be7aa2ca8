// Package chatclient is a Go client for the chat API and the reconciling
// controller a chat front-end runs on top of it.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"research-chat/chatapi"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

// Client calls the REST endpoints and dials the realtime channel.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New builds a Client for baseURL (e.g. http://localhost:8083) authenticated with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &APIError{Status: resp.StatusCode, Message: failure.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, path, nil, "", out)
	}
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(buf), "application/json", out)
}

func (c *Client) doMultipart(ctx context.Context, method, path, field, filename string, r io.Reader, out any) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.do(ctx, method, path, body, w.FormDataContentType(), out)
}

func (c *Client) StartDirectChat(ctx context.Context, recipientID string) (chatapi.DirectChatView, error) {
	var resp struct {
		Chat chatapi.DirectChatView `json:"chat"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/chat/direct", map[string]string{"recipientId": recipientID}, &resp)
	return resp.Chat, err
}

func (c *Client) ListChats(ctx context.Context) (chatapi.ChatList, error) {
	var list chatapi.ChatList
	err := c.doJSON(ctx, http.MethodGet, "/chat/list", nil, &list)
	return list, err
}

func (c *Client) ListResearchers(ctx context.Context) ([]chatapi.UserRef, error) {
	var resp struct {
		Researchers []chatapi.UserRef `json:"researchers"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/chat/researchers", nil, &resp)
	return resp.Researchers, err
}

type groupResponse struct {
	Photo string            `json:"photo"`
	Group chatapi.GroupView `json:"group"`
}

func (c *Client) CreateGroup(ctx context.Context, name, description string, members []string) (chatapi.GroupView, error) {
	var resp groupResponse
	err := c.doJSON(ctx, http.MethodPost, "/chat/group", map[string]any{
		"name":        name,
		"description": description,
		"members":     members,
	}, &resp)
	return resp.Group, err
}

func (c *Client) UpdateGroup(ctx context.Context, groupID string, update chatapi.GroupUpdate) (chatapi.GroupView, error) {
	body := map[string]string{}
	if update.Name != nil {
		body["name"] = *update.Name
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	var resp groupResponse
	err := c.doJSON(ctx, http.MethodPut, "/chat/group/"+url.PathEscape(groupID), body, &resp)
	return resp.Group, err
}

// UpdateGroupPhoto uploads an image and returns its url.
func (c *Client) UpdateGroupPhoto(ctx context.Context, groupID, filename string, r io.Reader) (string, error) {
	var resp groupResponse
	err := c.doMultipart(ctx, http.MethodPut, "/chat/group/"+url.PathEscape(groupID)+"/photo", "photo", filename, r, &resp)
	return resp.Photo, err
}

func (c *Client) AddMember(ctx context.Context, groupID, memberID string) (chatapi.GroupView, error) {
	var resp groupResponse
	err := c.doJSON(ctx, http.MethodPost, "/chat/group/"+url.PathEscape(groupID)+"/members", map[string]string{"memberId": memberID}, &resp)
	return resp.Group, err
}

func (c *Client) RemoveMember(ctx context.Context, groupID, memberID string) (chatapi.GroupView, error) {
	var resp groupResponse
	err := c.doJSON(ctx, http.MethodDelete, "/chat/group/"+url.PathEscape(groupID)+"/members/"+url.PathEscape(memberID), nil, &resp)
	return resp.Group, err
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/group/"+url.PathEscape(groupID)+"/leave", nil, nil)
}

type messageResponse struct {
	Message chatapi.MessageView `json:"message"`
}

func (c *Client) SendMessage(ctx context.Context, ref chatapi.ChatRef, content string) (chatapi.MessageView, error) {
	var resp messageResponse
	err := c.doJSON(ctx, http.MethodPost, "/chat/message", map[string]string{
		"content":  content,
		"chatId":   ref.ID,
		"chatType": string(ref.Type),
	}, &resp)
	return resp.Message, err
}

func (c *Client) ListMessages(ctx context.Context, ref chatapi.ChatRef) ([]chatapi.MessageView, error) {
	var resp struct {
		Messages []chatapi.MessageView `json:"messages"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/chat/messages/"+url.PathEscape(ref.ID)+"/"+string(ref.Type), nil, &resp)
	return resp.Messages, err
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) (chatapi.MessageView, error) {
	var resp messageResponse
	err := c.doJSON(ctx, http.MethodDelete, "/chat/message/"+url.PathEscape(messageID), nil, &resp)
	return resp.Message, err
}

func (c *Client) UploadFile(ctx context.Context, ref chatapi.ChatRef, filename string, r io.Reader) (chatapi.MessageView, error) {
	var resp messageResponse
	err := c.doMultipart(ctx, http.MethodPost, "/chat/upload/"+url.PathEscape(ref.ID)+"/"+string(ref.Type), "file", filename, r, &resp)
	return resp.Message, err
}

// Dial opens the realtime channel with the token in the query string.
func (c *Client) Dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}
