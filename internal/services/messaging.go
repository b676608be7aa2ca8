package services

import (
	"context"
	"errors"
	"fmt"

	"research-chat/internal/models"
	"research-chat/internal/observability"
	"research-chat/internal/repositories"
	"research-chat/internal/storage"
)

// MessagingService persists messages and fans them out to the conversation rooms.
type MessagingService struct {
	chats          repositories.ChatRepository
	groups         repositories.GroupRepository
	messages       repositories.MessageRepository
	users          repositories.UserRepository
	files          storage.FileStore
	rooms          RoomEmitter
	maxUploadBytes int64
}

// NewMessagingService builds a MessagingService.
func NewMessagingService(store repositories.Store, files storage.FileStore, rooms RoomEmitter, maxUploadBytes int64) *MessagingService {
	return &MessagingService{
		chats:          store.Chats,
		groups:         store.Groups,
		messages:       store.Messages,
		users:          store.Users,
		files:          files,
		rooms:          rooms,
		maxUploadBytes: maxUploadBytes,
	}
}

// participants resolves a chat reference to the ids of everyone in it.
func (s *MessagingService) participants(ctx context.Context, ref models.ChatRef) ([]string, error) {
	switch ref.Type {
	case models.ChatTypeDirect:
		chat, err := s.chats.GetDirectChat(ctx, ref.ID)
		if errors.Is(err, repositories.ErrChatNotFound) || (err == nil && !chat.IsActive) {
			return nil, notFoundError("chat not found")
		}
		if err != nil {
			return nil, fmt.Errorf("load chat: %w", err)
		}
		return chat.ParticipantIDs, nil
	case models.ChatTypeGroup:
		group, err := s.groups.GetGroup(ctx, ref.ID)
		if errors.Is(err, repositories.ErrGroupNotFound) || (err == nil && !group.IsActive) {
			return nil, notFoundError("group not found")
		}
		if err != nil {
			return nil, fmt.Errorf("load group: %w", err)
		}
		return group.MemberIDs, nil
	}
	return nil, validationError("invalid chat type")
}

// participantsFor resolves ref and requires userID to be part of it.
func (s *MessagingService) participantsFor(ctx context.Context, ref models.ChatRef, userID string) ([]string, error) {
	ids, err := s.participants(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id == userID {
			return ids, nil
		}
	}
	return nil, authorizationError("not a member of this chat")
}

// SendMessage stores a text message and emits it to every participant room.
func (s *MessagingService) SendMessage(ctx context.Context, senderID string, ref models.ChatRef, content string) (models.MessageView, error) {
	content = trimmed(content)
	if content == "" {
		return models.MessageView{}, validationError("content is required")
	}
	if ref.ID == "" {
		return models.MessageView{}, validationError("chatId is required")
	}
	participants, err := s.participantsFor(ctx, ref, senderID)
	if err != nil {
		return models.MessageView{}, err
	}
	created, err := s.create(ctx, senderID, ref, models.Message{Content: content})
	if err != nil {
		return models.MessageView{}, err
	}
	return s.publish(ctx, ref, participants, created)
}

// UploadFile stores a PDF in the object store and posts it as a file message.
func (s *MessagingService) UploadFile(ctx context.Context, senderID string, ref models.ChatRef, upload Upload) (models.MessageView, error) {
	file, err := checkUpload("chat_file", upload, s.maxUploadBytes, chatFileTypes)
	if err != nil {
		return models.MessageView{}, err
	}
	participants, err := s.participantsFor(ctx, ref, senderID)
	if err != nil {
		return models.MessageView{}, err
	}

	url, err := s.files.Save(ctx, "chat-files", file.mime.Extension(), file.reader())
	if err != nil {
		return models.MessageView{}, fmt.Errorf("store file: %w", err)
	}
	created, err := s.create(ctx, senderID, ref, models.Message{Content: models.SharedFilePlaceholder, FileURL: url})
	if err != nil {
		discardUpload(ctx, s.files, "chat_file", url)
		return models.MessageView{}, err
	}
	return s.publish(ctx, ref, participants, created)
}

func (s *MessagingService) create(ctx context.Context, senderID string, ref models.ChatRef, msg models.Message) (models.Message, error) {
	msg.SenderID = senderID
	msg.ChatType = ref.Type
	msg.ChatID = ref.ID
	created, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	return created, nil
}

// publish records created as the chat's last message and emits it to the
// rooms of participants.
func (s *MessagingService) publish(ctx context.Context, ref models.ChatRef, participants []string, created models.Message) (models.MessageView, error) {
	var err error
	if ref.Type == models.ChatTypeGroup {
		err = s.groups.SetGroupLastMessage(ctx, ref.ID, created.ID)
	} else {
		err = s.chats.SetDirectLastMessage(ctx, ref.ID, created.ID)
	}
	if err != nil {
		return models.MessageView{}, fmt.Errorf("update last message: %w", err)
	}

	view, err := s.hydrate(ctx, created)
	if err != nil {
		return models.MessageView{}, err
	}
	observability.IncMessagesSent(string(ref.Type))
	s.emit(models.RoomsFor(ref, participants), models.Event{Event: models.EventReceiveMessage, Data: view})
	return view, nil
}

// DeleteMessage soft-deletes a message owned by requesterID and announces the deletion.
func (s *MessagingService) DeleteMessage(ctx context.Context, requesterID, messageID string) (models.MessageView, error) {
	msg, err := s.ownedMessage(ctx, requesterID, messageID)
	if err != nil {
		return models.MessageView{}, err
	}

	deleted, err := s.messages.SoftDeleteMessage(ctx, msg.ID, requesterID, models.DeletedMessagePlaceholder)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.MessageView{}, notFoundError("message not found")
		}
		return models.MessageView{}, fmt.Errorf("delete message: %w", err)
	}

	if err := s.announceDeletion(ctx, deleted); err != nil {
		return models.MessageView{}, err
	}
	return s.hydrate(ctx, deleted)
}

// ListMessages returns the chat history oldest first. Deleted messages carry the placeholder.
func (s *MessagingService) ListMessages(ctx context.Context, requesterID string, ref models.ChatRef) ([]models.MessageView, error) {
	if _, err := s.participantsFor(ctx, ref, requesterID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	senderIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	users, err := usersByID(ctx, s.users, senderIDs)
	if err != nil {
		return nil, err
	}
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.NewMessageView(m, users))
	}
	return views, nil
}

// Announce re-emits an already persisted message of userID. Used by socket clients
// that echo their own sends; receivers dedupe by id.
func (s *MessagingService) Announce(ctx context.Context, userID, messageID string) error {
	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return s.announceDeletion(ctx, msg)
	}
	participants, err := s.participants(ctx, msg.Ref())
	if err != nil {
		return err
	}
	view, err := s.hydrate(ctx, msg)
	if err != nil {
		return err
	}
	s.emit(models.RoomsFor(msg.Ref(), participants), models.Event{Event: models.EventReceiveMessage, Data: view})
	return nil
}

// AnnounceDeletion re-emits the deletion of a message userID already deleted.
func (s *MessagingService) AnnounceDeletion(ctx context.Context, userID, messageID string) error {
	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if !msg.IsDeleted {
		return validationError("message is not deleted")
	}
	return s.announceDeletion(ctx, msg)
}

func (s *MessagingService) ownedMessage(ctx context.Context, userID, messageID string) (models.Message, error) {
	if trimmed(messageID) == "" {
		return models.Message{}, validationError("messageId is required")
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.Message{}, notFoundError("message not found")
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("load message: %w", err)
	}
	if msg.SenderID != userID {
		return models.Message{}, authorizationError("not the sender of this message")
	}
	return msg, nil
}

func (s *MessagingService) announceDeletion(ctx context.Context, msg models.Message) error {
	participants, err := s.participants(ctx, msg.Ref())
	if err != nil {
		return err
	}
	s.emit(models.RoomsFor(msg.Ref(), participants), models.Event{Event: models.EventMessageDeleted, Data: msg.ID})
	return nil
}

func (s *MessagingService) hydrate(ctx context.Context, msg models.Message) (models.MessageView, error) {
	users, err := usersByID(ctx, s.users, []string{msg.SenderID})
	if err != nil {
		return models.MessageView{}, err
	}
	return models.NewMessageView(msg, users), nil
}

func (s *MessagingService) emit(rooms []string, ev models.Event) {
	if s.rooms == nil {
		return
	}
	s.rooms.Emit(rooms, ev)
}
