package models

import (
	"time"

	"research-chat/chatapi"
)

// Wire-level chat types live in the public chatapi package so the Go client
// can share them without importing internal code.
type (
	ChatType = chatapi.ChatType
	ChatRef  = chatapi.ChatRef
)

const (
	ChatTypeDirect = chatapi.ChatTypeDirect
	ChatTypeGroup  = chatapi.ChatTypeGroup
)

var (
	ErrInvalidChatType = chatapi.ErrInvalidChatType
	ParseChatType      = chatapi.ParseChatType
	DirectRef          = chatapi.DirectRef
	GroupRef           = chatapi.GroupRef
)

// DirectChat represents a private chat between exactly two users.
type DirectChat struct {
	ID             string    `bson:"_id" json:"id"`
	ParticipantIDs []string  `bson:"participant_ids" json:"participant_ids"`
	LastMessageID  string    `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	IsActive       bool      `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c DirectChat) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c DirectChat) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}
