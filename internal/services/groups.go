package services

import (
	"context"
	"errors"
	"fmt"

	"research-chat/internal/models"
	"research-chat/internal/repositories"
	"research-chat/internal/storage"
)

// GroupService enforces the admin rules of group lifecycle and membership.
type GroupService struct {
	groups         repositories.GroupRepository
	users          repositories.UserRepository
	files          storage.FileStore
	rooms          RoomEmitter
	maxUploadBytes int64
}

// NewGroupService builds a GroupService.
func NewGroupService(store repositories.Store, files storage.FileStore, rooms RoomEmitter, maxUploadBytes int64) *GroupService {
	return &GroupService{
		groups:         store.Groups,
		users:          store.Users,
		files:          files,
		rooms:          rooms,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateGroup creates a group administered by adminID. Only researchers may create groups.
func (s *GroupService) CreateGroup(ctx context.Context, adminID, adminRole, name, description string, memberIDs []string) (models.GroupView, error) {
	if adminRole != models.RoleResearcher {
		return models.GroupView{}, authorizationError("only researchers can create groups")
	}
	name = trimmed(name)
	if name == "" {
		return models.GroupView{}, validationError("group name is required")
	}

	members := repositories.MemberSet(adminID, memberIDs)
	others := make([]string, 0, len(members))
	for _, id := range members {
		if id != adminID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		found, err := s.users.GetUsers(ctx, others)
		if err != nil {
			return models.GroupView{}, fmt.Errorf("validate members: %w", err)
		}
		if len(found) != len(others) {
			return models.GroupView{}, validationError("one or more members do not exist")
		}
	}

	group, err := s.groups.CreateGroup(ctx, adminID, name, trimmed(description), others)
	if err != nil {
		return models.GroupView{}, fmt.Errorf("create group: %w", err)
	}

	for _, id := range group.MemberIDs {
		s.joinRoom(id, group.ID)
	}
	return s.view(ctx, group)
}

// UpdateGroup renames a group or changes its description. Admin only.
func (s *GroupService) UpdateGroup(ctx context.Context, requesterID, groupID string, update models.GroupUpdate) (models.GroupView, error) {
	if update.Name == nil && update.Description == nil {
		return models.GroupView{}, validationError("nothing to update")
	}
	if update.Name != nil {
		name := trimmed(*update.Name)
		if name == "" {
			return models.GroupView{}, validationError("group name cannot be empty")
		}
		update.Name = &name
	}
	if update.Description != nil {
		desc := trimmed(*update.Description)
		update.Description = &desc
	}

	if _, err := s.adminGroup(ctx, requesterID, groupID); err != nil {
		return models.GroupView{}, err
	}
	if err := s.groups.UpdateGroup(ctx, groupID, update); err != nil {
		return models.GroupView{}, s.repoError(err, "update group")
	}
	return s.reload(ctx, groupID)
}

// UpdateGroupPhoto uploads a new photo and returns its url. Admin only.
func (s *GroupService) UpdateGroupPhoto(ctx context.Context, requesterID, groupID string, upload Upload) (string, models.GroupView, error) {
	photo, err := checkUpload("group_photo", upload, s.maxUploadBytes, groupPhotoType)
	if err != nil {
		return "", models.GroupView{}, err
	}
	if _, err := s.adminGroup(ctx, requesterID, groupID); err != nil {
		return "", models.GroupView{}, err
	}

	url, err := s.files.Save(ctx, "group-photos", photo.mime.Extension(), photo.reader())
	if err != nil {
		return "", models.GroupView{}, fmt.Errorf("store photo: %w", err)
	}
	if err := s.groups.UpdateGroupPhoto(ctx, groupID, url); err != nil {
		discardUpload(ctx, s.files, "group_photo", url)
		return "", models.GroupView{}, s.repoError(err, "update photo")
	}
	view, err := s.reload(ctx, groupID)
	return url, view, err
}

// AddMember adds memberID to the group. Admin only; existing members are a conflict.
func (s *GroupService) AddMember(ctx context.Context, requesterID, groupID, memberID string) (models.GroupView, error) {
	memberID = trimmed(memberID)
	if memberID == "" {
		return models.GroupView{}, validationError("memberId is required")
	}
	group, err := s.adminGroup(ctx, requesterID, groupID)
	if err != nil {
		return models.GroupView{}, err
	}
	if group.HasMember(memberID) {
		return models.GroupView{}, conflictError("user is already a member")
	}
	if _, err := s.users.GetUser(ctx, memberID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.GroupView{}, notFoundError("user not found")
		}
		return models.GroupView{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.groups.AddMember(ctx, groupID, memberID); err != nil {
		return models.GroupView{}, s.repoError(err, "add member")
	}
	s.joinRoom(memberID, groupID)
	return s.reload(ctx, groupID)
}

// RemoveMember removes memberID from the group. Admin only; the admin cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, requesterID, groupID, memberID string) (models.GroupView, error) {
	group, err := s.adminGroup(ctx, requesterID, groupID)
	if err != nil {
		return models.GroupView{}, err
	}
	if memberID == group.AdminID {
		return models.GroupView{}, authorizationError("admin cannot be removed from the group")
	}
	if !group.HasMember(memberID) {
		return models.GroupView{}, notFoundError("user is not a member")
	}

	if err := s.groups.RemoveMember(ctx, groupID, memberID); err != nil {
		return models.GroupView{}, s.repoError(err, "remove member")
	}
	s.leaveRoom(memberID, groupID)
	return s.reload(ctx, groupID)
}

// LeaveGroup removes requesterID from the group. The admin cannot leave.
func (s *GroupService) LeaveGroup(ctx context.Context, requesterID, groupID string) error {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}
	if requesterID == group.AdminID {
		return authorizationError("admin cannot leave the group")
	}
	if !group.HasMember(requesterID) {
		return authorizationError("not a member of this group")
	}

	if err := s.groups.RemoveMember(ctx, groupID, requesterID); err != nil {
		return s.repoError(err, "leave group")
	}
	s.leaveRoom(requesterID, groupID)
	return nil
}

// IsMember is used by the realtime layer before joining a group room.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return s.groups.IsMember(ctx, groupID, userID)
}

func (s *GroupService) load(ctx context.Context, groupID string) (models.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if errors.Is(err, repositories.ErrGroupNotFound) || (err == nil && !group.IsActive) {
		return models.Group{}, notFoundError("group not found")
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("load group: %w", err)
	}
	return group, nil
}

func (s *GroupService) adminGroup(ctx context.Context, requesterID, groupID string) (models.Group, error) {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if group.AdminID != requesterID {
		return models.Group{}, authorizationError("only the group admin can do this")
	}
	return group, nil
}

func (s *GroupService) reload(ctx context.Context, groupID string) (models.GroupView, error) {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return models.GroupView{}, err
	}
	return s.view(ctx, group)
}

func (s *GroupService) view(ctx context.Context, group models.Group) (models.GroupView, error) {
	users, err := usersByID(ctx, s.users, append([]string{group.AdminID}, group.MemberIDs...))
	if err != nil {
		return models.GroupView{}, err
	}
	return groupView(group, users, nil), nil
}

func (s *GroupService) repoError(err error, op string) error {
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		return notFoundError("group not found")
	case errors.Is(err, repositories.ErrAlreadyMember):
		return conflictError("user is already a member")
	case errors.Is(err, repositories.ErrNotMember):
		return notFoundError("user is not a member")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *GroupService) joinRoom(userID, groupID string) {
	if s.rooms != nil {
		s.rooms.JoinUser(userID, models.GroupRoom(groupID))
	}
}

func (s *GroupService) leaveRoom(userID, groupID string) {
	if s.rooms != nil {
		s.rooms.LeaveUser(userID, models.GroupRoom(groupID))
	}
}
