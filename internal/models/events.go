package models

import "research-chat/chatapi"

// Realtime event names.
const (
	EventJoinGroup      = chatapi.EventJoinGroup
	EventSendMessage    = chatapi.EventSendMessage
	EventDeleteMessage  = chatapi.EventDeleteMessage
	EventTyping         = chatapi.EventTyping
	EventOnlineUsers    = chatapi.EventOnlineUsers
	EventReceiveMessage = chatapi.EventReceiveMessage
	EventMessageDeleted = chatapi.EventMessageDeleted
	EventUserTyping     = chatapi.EventUserTyping
	EventError          = chatapi.EventError
)

type (
	Event         = chatapi.Event
	TypingPayload = chatapi.TypingPayload
	ErrorPayload  = chatapi.ErrorPayload
)

// UserRoom addresses every connection of one user.
func UserRoom(userID string) string { return "user:" + userID }

// GroupRoom addresses every joined connection of a group.
func GroupRoom(groupID string) string { return "group:" + groupID }

// RoomsFor returns the fan-out rooms of a conversation.
func RoomsFor(ref ChatRef, participantIDs []string) []string {
	if ref.Type == ChatTypeGroup {
		return []string{GroupRoom(ref.ID)}
	}
	rooms := make([]string, 0, len(participantIDs))
	for _, id := range participantIDs {
		rooms = append(rooms, UserRoom(id))
	}
	return rooms
}
