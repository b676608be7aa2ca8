package models

import "research-chat/chatapi"

type (
	UserRef        = chatapi.UserRef
	MessageView    = chatapi.MessageView
	DirectChatView = chatapi.DirectChatView
	GroupView      = chatapi.GroupView
	ChatList       = chatapi.ChatList
)

// NewUserRef projects a user; unknown users keep only their id.
func NewUserRef(id string, users map[string]User) UserRef {
	u, ok := users[id]
	if !ok {
		return UserRef{ID: id}
	}
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.AvatarURL}
}

func NewMessageView(m Message, users map[string]User) MessageView {
	return MessageView{
		ID:        m.ID,
		Sender:    NewUserRef(m.SenderID, users),
		Content:   m.Content,
		ChatType:  m.ChatType,
		ChatID:    m.ChatID,
		FileURL:   m.FileURL,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
}
