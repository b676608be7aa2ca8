// Package chatapi holds the wire types shared by the chat server and its Go
// client: chat references, hydrated views and realtime event frames.
package chatapi

import (
	"errors"
	"time"
)

// ChatType discriminates the two conversation kinds.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

var ErrInvalidChatType = errors.New("invalid chat type")

// ParseChatType validates a chat type coming from a path or payload.
func ParseChatType(raw string) (ChatType, error) {
	switch ChatType(raw) {
	case ChatTypeDirect, ChatTypeGroup:
		return ChatType(raw), nil
	}
	return "", ErrInvalidChatType
}

// ChatRef points at either a direct chat or a group.
type ChatRef struct {
	Type ChatType
	ID   string
}

func DirectRef(id string) ChatRef { return ChatRef{Type: ChatTypeDirect, ID: id} }

func GroupRef(id string) ChatRef { return ChatRef{Type: ChatTypeGroup, ID: id} }

// DeletedMessagePlaceholder replaces the content of a soft-deleted message.
const DeletedMessagePlaceholder = "This message was deleted"

// UserRef is the denormalized user shape embedded in every API payload.
type UserRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
}

// MessageView is a message with its sender hydrated.
type MessageView struct {
	ID        string    `json:"_id"`
	Sender    UserRef   `json:"sender"`
	Content   string    `json:"content"`
	ChatType  ChatType  `json:"chatType"`
	ChatID    string    `json:"chatId"`
	FileURL   string    `json:"fileUrl,omitempty"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
}

// DirectChatView is a direct chat as listed to a participant.
type DirectChatView struct {
	ID           string       `json:"_id"`
	Participants []UserRef    `json:"participants"`
	LastMessage  *MessageView `json:"lastMessage,omitempty"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// GroupView is a group with admin and members hydrated.
type GroupView struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Photo       string       `json:"photo"`
	Admin       UserRef      `json:"admin"`
	Members     []UserRef    `json:"members"`
	LastMessage *MessageView `json:"lastMessage,omitempty"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ChatList is the payload of GET /chat/list.
type ChatList struct {
	DirectChats []DirectChatView `json:"directChats"`
	GroupChats  []GroupView      `json:"groupChats"`
}

// GroupUpdate carries a partial rename; nil fields keep their value.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// Realtime event names.
const (
	EventJoinGroup      = "join_group"
	EventSendMessage    = "send_message"
	EventDeleteMessage  = "delete_message"
	EventTyping         = "typing"
	EventOnlineUsers    = "online_users"
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
	EventUserTyping     = "user_typing"
	EventError          = "error"
)

// Event is the envelope for every realtime frame in both directions.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// TypingPayload is relayed to the other side of a conversation.
type TypingPayload struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

// ErrorPayload is sent before a connection is closed.
type ErrorPayload struct {
	Message string `json:"message"`
}
