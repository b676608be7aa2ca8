package models

import (
	"time"

	"research-chat/chatapi"
)

// Group represents an admin-owned conversation with many members.
type Group struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Description   string    `bson:"description" json:"description"`
	PhotoURL      string    `bson:"photo_url" json:"photo_url"`
	AdminID       string    `bson:"admin_id" json:"admin_id"`
	MemberIDs     []string  `bson:"member_ids" json:"member_ids"`
	LastMessageID string    `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	IsActive      bool      `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type GroupUpdate = chatapi.GroupUpdate
