package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatType(t *testing.T) {
	ct, err := ParseChatType("group")
	require.NoError(t, err)
	assert.Equal(t, ChatTypeGroup, ct)

	_, err = ParseChatType("channel")
	assert.ErrorIs(t, err, ErrInvalidChatType)

	_, err = ParseChatType("")
	assert.ErrorIs(t, err, ErrInvalidChatType)
}

func TestRoomsFor(t *testing.T) {
	assert.Equal(t, []string{"user:alice", "user:bob"}, RoomsFor(DirectRef("c1"), []string{"alice", "bob"}))
	assert.Equal(t, []string{"group:g1"}, RoomsFor(GroupRef("g1"), []string{"alice", "bob", "carol"}))
}

func TestDirectChatParticipants(t *testing.T) {
	chat := DirectChat{ParticipantIDs: []string{"alice", "bob"}}

	assert.True(t, chat.HasParticipant("bob"))
	assert.False(t, chat.HasParticipant("carol"))
	assert.Equal(t, "bob", chat.OtherParticipant("alice"))
	assert.Equal(t, "alice", chat.OtherParticipant("bob"))
}

func TestNewMessageViewHydratesSender(t *testing.T) {
	users := map[string]User{"alice": {ID: "alice", Name: "Alice", Email: "alice@lab.org", AvatarURL: "/a.png"}}

	known := NewMessageView(Message{ID: "m1", SenderID: "alice", ChatType: ChatTypeDirect, ChatID: "c1"}, users)
	assert.Equal(t, UserRef{ID: "alice", Name: "Alice", Email: "alice@lab.org", Photo: "/a.png"}, known.Sender)
	assert.Equal(t, DirectRef("c1"), Message{ChatType: known.ChatType, ChatID: known.ChatID}.Ref())

	unknown := NewMessageView(Message{ID: "m2", SenderID: "ghost"}, users)
	assert.Equal(t, UserRef{ID: "ghost"}, unknown.Sender)
}
