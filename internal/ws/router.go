package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"research-chat/internal/models"
	"research-chat/internal/services"
)

// Messenger re-announces persisted messages; satisfied by services.MessagingService.
type Messenger interface {
	Announce(ctx context.Context, userID, messageID string) error
	AnnounceDeletion(ctx context.Context, userID, messageID string) error
}

// Membership is satisfied by services.GroupService.
type Membership interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Router dispatches inbound frames of authenticated connections.
type Router struct {
	hub      *Hub
	messages Messenger
	groups   Membership
	log      *zap.Logger
}

func NewRouter(hub *Hub, messages Messenger, groups Membership, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{hub: hub, messages: messages, groups: groups, log: log}
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type conversationTarget struct {
	ChatType    string `json:"chatType"`
	RecipientID string `json:"recipientId"`
	GroupID     string `json:"groupId"`
}

type messageRefPayload struct {
	ID        string `json:"_id"`
	MessageID string `json:"messageId"`
}

func (p messageRefPayload) messageID() string {
	if p.MessageID != "" {
		return p.MessageID
	}
	return p.ID
}

// clientError is safe to echo back to the connection.
type clientError string

func (e clientError) Error() string { return string(e) }

const (
	errBadPayload   = clientError("invalid payload")
	errUnknownEvent = clientError("unknown event")
	errNotMember    = clientError("not a member of this group")
	errNotJoined    = clientError("join the group before typing")
)

// Handle processes one raw frame. Failures are reported to the sender only.
func (r *Router) Handle(ctx context.Context, c *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		r.fail(c, "malformed frame")
		return
	}

	var err error
	switch frame.Event {
	case models.EventJoinGroup:
		err = r.joinGroup(ctx, c, frame.Data)
	case models.EventSendMessage:
		err = r.announce(ctx, c, frame.Data, r.messages.Announce)
	case models.EventDeleteMessage:
		err = r.announce(ctx, c, frame.Data, r.messages.AnnounceDeletion)
	case models.EventTyping:
		err = r.typing(c, frame.Data)
	default:
		err = errUnknownEvent
	}
	if err != nil {
		r.log.Debug("ws event rejected", zap.String("event", frame.Event), zap.String("user_id", c.info.UserID), zap.Error(err))
		r.fail(c, errorText(err))
	}
}

func (r *Router) joinGroup(ctx context.Context, c *Client, data json.RawMessage) error {
	groupID := groupIDFrom(data)
	if groupID == "" {
		return errBadPayload
	}
	ok, err := r.groups.IsMember(ctx, groupID, c.info.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotMember
	}
	r.hub.Join(c, models.GroupRoom(groupID))
	return nil
}

// groupIDFrom accepts either a bare id or {"groupId": id}.
func groupIDFrom(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var target conversationTarget
	if err := json.Unmarshal(data, &target); err == nil {
		return strings.TrimSpace(target.GroupID)
	}
	return ""
}

func (r *Router) announce(ctx context.Context, c *Client, data json.RawMessage, fn func(context.Context, string, string) error) error {
	var ref messageRefPayload
	if err := json.Unmarshal(data, &ref); err != nil {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return errBadPayload
		}
		ref.MessageID = id
	}
	if ref.messageID() == "" {
		return errBadPayload
	}
	return fn(ctx, c.info.UserID, ref.messageID())
}

func (r *Router) typing(c *Client, data json.RawMessage) error {
	var target conversationTarget
	if err := json.Unmarshal(data, &target); err != nil {
		return errBadPayload
	}
	chatType, err := models.ParseChatType(target.ChatType)
	if err != nil {
		return err
	}

	switch chatType {
	case models.ChatTypeDirect:
		if target.RecipientID == "" || target.RecipientID == c.info.UserID {
			return errBadPayload
		}
		r.hub.Emit([]string{models.UserRoom(target.RecipientID)}, models.Event{
			Event: models.EventUserTyping,
			Data:  models.TypingPayload{UserID: c.info.UserID, ChatID: c.info.UserID},
		})
	case models.ChatTypeGroup:
		room := models.GroupRoom(target.GroupID)
		if target.GroupID == "" || !r.hub.InRoom(c, room) {
			return errNotJoined
		}
		r.hub.EmitExcept([]string{room}, models.Event{
			Event: models.EventUserTyping,
			Data:  models.TypingPayload{UserID: c.info.UserID, ChatID: target.GroupID},
		}, c.info.UserID)
	}
	return nil
}

func (r *Router) fail(c *Client, msg string) {
	r.hub.Send(c, models.Event{Event: models.EventError, Data: models.ErrorPayload{Message: msg}})
}

func errorText(err error) string {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		return svcErr.Msg
	}
	var ce clientError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	if errors.Is(err, models.ErrInvalidChatType) {
		return err.Error()
	}
	return "internal error"
}
