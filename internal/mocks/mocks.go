package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"research-chat/internal/models"
	"research-chat/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetDirectChat(ctx context.Context, userID, recipientID string) (models.DirectChat, error) {
	args := m.Called(ctx, userID, recipientID)
	var chat models.DirectChat
	if val := args.Get(0); val != nil {
		chat = val.(models.DirectChat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetDirectChat(ctx context.Context, chatID string) (models.DirectChat, error) {
	args := m.Called(ctx, chatID)
	var chat models.DirectChat
	if val := args.Get(0); val != nil {
		chat = val.(models.DirectChat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListDirectChatsForUser(ctx context.Context, userID string) ([]models.DirectChat, error) {
	args := m.Called(ctx, userID)
	var list []models.DirectChat
	if val := args.Get(0); val != nil {
		list = val.([]models.DirectChat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) SetDirectLastMessage(ctx context.Context, chatID, messageID string) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, adminID, name, description string, memberIDs []string) (models.Group, error) {
	args := m.Called(ctx, adminID, name, description, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var list []models.Group
	if val := args.Get(0); val != nil {
		list = val.([]models.Group)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) error {
	args := m.Called(ctx, groupID, update)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UpdateGroupPhoto(ctx context.Context, groupID, photoURL string) error {
	args := m.Called(ctx, groupID, photoURL)
	return args.Error(0)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) SetGroupLastMessage(ctx context.Context, groupID, messageID string) error {
	args := m.Called(ctx, groupID, messageID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessagesByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	args := m.Called(ctx, ids)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, ref models.ChatRef) ([]models.Message, error) {
	args := m.Called(ctx, ref)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID, senderID, placeholder string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, placeholder)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) ListUsersByRole(ctx context.Context, role, excludeID string) ([]models.User, error) {
	args := m.Called(ctx, role, excludeID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

// Store bundles fresh mocks the way repositories.Store bundles real repositories.
type Store struct {
	Chats    *ChatRepositoryMock
	Groups   *GroupRepositoryMock
	Messages *MessageRepositoryMock
	Users    *UserRepositoryMock
}

func NewStore() *Store {
	return &Store{
		Chats:    new(ChatRepositoryMock),
		Groups:   new(GroupRepositoryMock),
		Messages: new(MessageRepositoryMock),
		Users:    new(UserRepositoryMock),
	}
}

func (s *Store) Repositories() repositories.Store {
	return repositories.Store{Chats: s.Chats, Groups: s.Groups, Messages: s.Messages, Users: s.Users}
}

func (s *Store) AssertExpectations(t mock.TestingT) {
	s.Chats.AssertExpectations(t)
	s.Groups.AssertExpectations(t)
	s.Messages.AssertExpectations(t)
	s.Users.AssertExpectations(t)
}

type RoomEmitterMock struct {
	mock.Mock
}

func (m *RoomEmitterMock) Emit(rooms []string, event models.Event) {
	m.Called(rooms, event)
}

func (m *RoomEmitterMock) JoinUser(userID, room string) {
	m.Called(userID, room)
}

func (m *RoomEmitterMock) LeaveUser(userID, room string) {
	m.Called(userID, room)
}

type FileStoreMock struct {
	mock.Mock
}

func (m *FileStoreMock) Save(ctx context.Context, folder, ext string, r io.Reader) (string, error) {
	args := m.Called(ctx, folder, ext, r)
	return args.String(0), args.Error(1)
}

func (m *FileStoreMock) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, text, resource, requestID, userID string) {
	m.Called(ctx, level, text, resource, requestID, userID)
}
