package services

import (
	"context"
	"errors"
	"fmt"

	"research-chat/internal/models"
	"research-chat/internal/repositories"
)

// ChatService owns direct chat creation and the chat list.
type ChatService struct {
	chats    repositories.ChatRepository
	groups   repositories.GroupRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
}

// NewChatService builds a ChatService.
func NewChatService(store repositories.Store) *ChatService {
	return &ChatService{
		chats:    store.Chats,
		groups:   store.Groups,
		messages: store.Messages,
		users:    store.Users,
	}
}

// StartDirectChat creates or fetches the chat between userID and recipientID.
func (s *ChatService) StartDirectChat(ctx context.Context, userID, recipientID string) (models.DirectChatView, error) {
	recipientID = trimmed(recipientID)
	if recipientID == "" {
		return models.DirectChatView{}, validationError("recipientId is required")
	}
	if recipientID == userID {
		return models.DirectChatView{}, validationError("cannot chat with yourself")
	}
	if _, err := s.users.GetUser(ctx, recipientID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.DirectChatView{}, notFoundError("recipient not found")
		}
		return models.DirectChatView{}, fmt.Errorf("load recipient: %w", err)
	}

	chat, err := s.chats.CreateOrGetDirectChat(ctx, userID, recipientID)
	if err != nil {
		return models.DirectChatView{}, fmt.Errorf("create chat: %w", err)
	}

	last := map[string]models.Message{}
	ids := append([]string{}, chat.ParticipantIDs...)
	if chat.LastMessageID != "" {
		msgs, err := s.messages.GetMessagesByIDs(ctx, []string{chat.LastMessageID})
		if err != nil {
			return models.DirectChatView{}, fmt.Errorf("load last message: %w", err)
		}
		for _, m := range msgs {
			last[m.ID] = m
			ids = append(ids, m.SenderID)
		}
	}
	users, err := usersByID(ctx, s.users, ids)
	if err != nil {
		return models.DirectChatView{}, err
	}
	return directChatView(chat, users, last), nil
}

// ListChats returns the caller's direct chats and groups with last-message previews.
func (s *ChatService) ListChats(ctx context.Context, userID string) (models.ChatList, error) {
	directs, err := s.chats.ListDirectChatsForUser(ctx, userID)
	if err != nil {
		return models.ChatList{}, fmt.Errorf("load chats: %w", err)
	}
	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return models.ChatList{}, fmt.Errorf("load groups: %w", err)
	}

	var lastIDs, userIDs []string
	for _, c := range directs {
		userIDs = append(userIDs, c.ParticipantIDs...)
		if c.LastMessageID != "" {
			lastIDs = append(lastIDs, c.LastMessageID)
		}
	}
	for _, g := range groups {
		userIDs = append(userIDs, g.AdminID)
		userIDs = append(userIDs, g.MemberIDs...)
		if g.LastMessageID != "" {
			lastIDs = append(lastIDs, g.LastMessageID)
		}
	}

	last := map[string]models.Message{}
	if len(lastIDs) > 0 {
		msgs, err := s.messages.GetMessagesByIDs(ctx, lastIDs)
		if err != nil {
			return models.ChatList{}, fmt.Errorf("load last messages: %w", err)
		}
		for _, m := range msgs {
			last[m.ID] = m
			userIDs = append(userIDs, m.SenderID)
		}
	}

	users, err := usersByID(ctx, s.users, userIDs)
	if err != nil {
		return models.ChatList{}, err
	}

	list := models.ChatList{
		DirectChats: make([]models.DirectChatView, 0, len(directs)),
		GroupChats:  make([]models.GroupView, 0, len(groups)),
	}
	for _, c := range directs {
		list.DirectChats = append(list.DirectChats, directChatView(c, users, last))
	}
	for _, g := range groups {
		list.GroupChats = append(list.GroupChats, groupView(g, users, last))
	}
	return list, nil
}

// ListResearchers returns candidate chat partners for userID.
func (s *ChatService) ListResearchers(ctx context.Context, userID string) ([]models.UserRef, error) {
	users, err := s.users.ListUsersByRole(ctx, models.RoleResearcher, userID)
	if err != nil {
		return nil, fmt.Errorf("load researchers: %w", err)
	}
	refs := make([]models.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.AvatarURL})
	}
	return refs, nil
}
