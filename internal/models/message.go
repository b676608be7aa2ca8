package models

import (
	"time"

	"research-chat/chatapi"
)

const (
	DeletedMessagePlaceholder = chatapi.DeletedMessagePlaceholder
	SharedFilePlaceholder     = "shared a file"
)

// Message is a single chat entry. ChatType tells which collection ChatID refers to.
type Message struct {
	ID        string    `db:"id" bson:"_id" json:"id"`
	SenderID  string    `db:"sender_id" bson:"sender_id" json:"sender_id"`
	Content   string    `db:"content" bson:"content" json:"content"`
	ChatType  ChatType  `db:"chat_type" bson:"chat_type" json:"chat_type"`
	ChatID    string    `db:"chat_id" bson:"chat_id" json:"chat_id"`
	FileURL   string    `db:"file_url" bson:"file_url,omitempty" json:"file_url,omitempty"`
	IsDeleted bool      `db:"is_deleted" bson:"is_deleted" json:"is_deleted"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"created_at"`
}

// Ref returns the conversation this message belongs to.
func (m Message) Ref() ChatRef {
	return ChatRef{Type: m.ChatType, ID: m.ChatID}
}
