package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"research-chat/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrSelfChat     = errors.New("cannot create chat with self")
)

// ChatRepository abstracts direct chat persistence.
type ChatRepository interface {
	CreateOrGetDirectChat(ctx context.Context, userID, recipientID string) (models.DirectChat, error)
	GetDirectChat(ctx context.Context, chatID string) (models.DirectChat, error)
	ListDirectChatsForUser(ctx context.Context, userID string) ([]models.DirectChat, error)
	SetDirectLastMessage(ctx context.Context, chatID, messageID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type directChatRow struct {
	ID            string    `db:"id"`
	User1ID       string    `db:"user1_id"`
	User2ID       string    `db:"user2_id"`
	LastMessageID string    `db:"last_message_id"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r directChatRow) model() models.DirectChat {
	return models.DirectChat{
		ID:             r.ID,
		ParticipantIDs: []string{r.User1ID, r.User2ID},
		LastMessageID:  r.LastMessageID,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const directChatColumns = `id, user1_id, user2_id, last_message_id, is_active, created_at, updated_at`

// SortedPair orders two participant ids so the unordered pair has one representation.
func SortedPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// CreateOrGetDirectChat returns the chat for the unordered pair, creating it on first contact.
func (r *ChatRepo) CreateOrGetDirectChat(ctx context.Context, userID, recipientID string) (models.DirectChat, error) {
	if userID == recipientID {
		return models.DirectChat{}, ErrSelfChat
	}
	user1, user2 := SortedPair(userID, recipientID)

	var row directChatRow
	err := r.db.GetContext(ctx, &row, `INSERT INTO direct_chats (id, user1_id, user2_id) VALUES ($1, $2, $3)
        ON CONFLICT (user1_id, user2_id) DO NOTHING
        RETURNING `+directChatColumns, uuid.NewString(), user1, user2)
	if err == nil {
		return row.model(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.DirectChat{}, err
	}

	// lost the race or already existed
	if err := r.db.GetContext(ctx, &row, `SELECT `+directChatColumns+` FROM direct_chats WHERE user1_id=$1 AND user2_id=$2`, user1, user2); err != nil {
		return models.DirectChat{}, err
	}
	return row.model(), nil
}

// GetDirectChat fetches a chat by id.
func (r *ChatRepo) GetDirectChat(ctx context.Context, chatID string) (models.DirectChat, error) {
	var row directChatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+directChatColumns+` FROM direct_chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectChat{}, ErrChatNotFound
	}
	if err != nil {
		return models.DirectChat{}, err
	}
	return row.model(), nil
}

// ListDirectChatsForUser returns the user's chats, most recently active first.
func (r *ChatRepo) ListDirectChatsForUser(ctx context.Context, userID string) ([]models.DirectChat, error) {
	var rows []directChatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+directChatColumns+` FROM direct_chats
        WHERE (user1_id=$1 OR user2_id=$1) AND is_active = TRUE
        ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	chats := make([]models.DirectChat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.model())
	}
	return chats, nil
}

// SetDirectLastMessage moves the preview pointer and bumps updated_at.
func (r *ChatRepo) SetDirectLastMessage(ctx context.Context, chatID, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE direct_chats SET last_message_id=$2, updated_at=NOW() WHERE id=$1`, chatID, messageID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrChatNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
