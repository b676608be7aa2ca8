package services

import (
	"context"
	"fmt"
	"strings"

	"research-chat/internal/models"
	"research-chat/internal/repositories"
)

// RoomEmitter is the only way services reach the realtime layer: they ask for
// events to be emitted to rooms and for users to join or leave group rooms.
type RoomEmitter interface {
	Emit(rooms []string, event models.Event)
	JoinUser(userID, room string)
	LeaveUser(userID, room string)
}

func usersByID(ctx context.Context, users repositories.UserRepository, ids []string) (map[string]models.User, error) {
	byID := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	list, err := users.GetUsers(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range list {
		byID[u.ID] = u
	}
	return byID, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func directChatView(chat models.DirectChat, users map[string]models.User, last map[string]models.Message) models.DirectChatView {
	view := models.DirectChatView{
		ID:        chat.ID,
		IsActive:  chat.IsActive,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
	view.Participants = make([]models.UserRef, 0, len(chat.ParticipantIDs))
	for _, id := range chat.ParticipantIDs {
		view.Participants = append(view.Participants, models.NewUserRef(id, users))
	}
	if msg, ok := last[chat.LastMessageID]; ok {
		mv := models.NewMessageView(msg, users)
		view.LastMessage = &mv
	}
	return view
}

func groupView(group models.Group, users map[string]models.User, last map[string]models.Message) models.GroupView {
	view := models.GroupView{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		Photo:       group.PhotoURL,
		Admin:       models.NewUserRef(group.AdminID, users),
		IsActive:    group.IsActive,
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}
	view.Members = make([]models.UserRef, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		view.Members = append(view.Members, models.NewUserRef(id, users))
	}
	if msg, ok := last[group.LastMessageID]; ok {
		mv := models.NewMessageView(msg, users)
		view.LastMessage = &mv
	}
	return view
}

func trimmed(s string) string { return strings.TrimSpace(s) }
