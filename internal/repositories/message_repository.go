package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"research-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for messages of both chat kinds.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) ([]models.Message, error)
	ListMessages(ctx context.Context, ref models.ChatRef) ([]models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, senderID, placeholder string) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, content, chat_type, chat_id, file_url, is_deleted, created_at`

// CreateMessage stores a message and returns the persisted row.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.GetContext(ctx, &created, `INSERT INTO messages (id, sender_id, content, chat_type, chat_id, file_url)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		uuid.NewString(), msg.SenderID, msg.Content, msg.ChatType, msg.ChatID, msg.FileURL)
	return created, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetMessagesByIDs loads the preview messages of a chat list in one round trip.
func (r *MessageRepo) GetMessagesByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return []models.Message{}, nil
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(ids))
	return msgs, err
}

// ListMessages returns every message of the chat ordered by creation, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, ref models.ChatRef) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE chat_type=$1 AND chat_id=$2
        ORDER BY created_at ASC, id ASC`, ref.Type, ref.ID)
	return msgs, err
}

// SoftDeleteMessage redacts a message sent by senderID. The row is kept.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID, senderID, placeholder string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET is_deleted = TRUE, content = $3
        WHERE id=$1 AND sender_id=$2
        RETURNING `+messageColumns, messageID, senderID, placeholder)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
