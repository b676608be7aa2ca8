package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"research-chat/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("user is already a member")
	ErrNotMember     = errors.New("user is not a member")
)

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, adminID, name, description string, memberIDs []string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) error
	UpdateGroupPhoto(ctx context.Context, groupID, photoURL string) error
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	SetGroupLastMessage(ctx context.Context, groupID, messageID string) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

type groupRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	PhotoURL      string    `db:"photo_url"`
	AdminID       string    `db:"admin_id"`
	LastMessageID string    `db:"last_message_id"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r groupRow) model(members []string) models.Group {
	return models.Group{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		PhotoURL:      r.PhotoURL,
		AdminID:       r.AdminID,
		MemberIDs:     members,
		LastMessageID: r.LastMessageID,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const groupColumns = `g.id, g.name, g.description, g.photo_url, g.admin_id, g.last_message_id, g.is_active, g.created_at, g.updated_at`

// MemberSet dedupes member ids and always includes the admin.
func MemberSet(adminID string, memberIDs []string) []string {
	set := map[string]struct{}{adminID: {}}
	for _, id := range memberIDs {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateGroup creates a group and its members atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, adminID, name, description string, memberIDs []string) (group models.Group, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var row groupRow
	if err = tx.GetContext(ctx, &row, `INSERT INTO groups AS g (id, name, description, admin_id) VALUES ($1, $2, $3, $4)
        RETURNING `+groupColumns, uuid.NewString(), name, description, adminID); err != nil {
		return models.Group{}, err
	}

	ids := MemberSet(adminID, memberIDs)
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, row.ID, id); err != nil {
			return models.Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return row.model(ids), nil
}

// GetGroup fetches a group with its member ids.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var row groupRow
	err := r.db.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM groups g WHERE g.id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	var members []string
	if err := r.db.SelectContext(ctx, &members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY joined_at, user_id`, groupID); err != nil {
		return models.Group{}, err
	}
	return row.model(members), nil
}

// ListGroupsForUser returns active groups that include the user, most recently active first.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	var rows []groupRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+groupColumns+` FROM groups g
        INNER JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id=$1 AND g.is_active = TRUE
        ORDER BY g.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Group{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var memberships []struct {
		GroupID string `db:"group_id"`
		UserID  string `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &memberships, `SELECT group_id, user_id FROM group_members WHERE group_id = ANY($1) ORDER BY joined_at, user_id`, pq.Array(ids)); err != nil {
		return nil, err
	}
	membersByGroup := map[string][]string{}
	for _, m := range memberships {
		membersByGroup[m.GroupID] = append(membersByGroup[m.GroupID], m.UserID)
	}

	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.model(membersByGroup[row.ID]))
	}
	return groups, nil
}

// ListGroupIDsForUser returns only the ids, used when admitting a connection to its rooms.
func (r *GroupRepo) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT gm.group_id FROM group_members gm
        INNER JOIN groups g ON g.id = gm.group_id
        WHERE gm.user_id=$1 AND g.is_active = TRUE`, userID)
	return ids, err
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// UpdateGroup applies a partial rename.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            updated_at = NOW()
        WHERE id=$1`, groupID, update.Name, update.Description)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrGroupNotFound)
}

// UpdateGroupPhoto overwrites the photo url.
func (r *GroupRepo) UpdateGroupPhoto(ctx context.Context, groupID, photoURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET photo_url=$2, updated_at=NOW() WHERE id=$1`, groupID, photoURL)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrGroupNotFound)
}

// AddMember inserts a membership row; a duplicate is reported, not ignored.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
        ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrGroupNotFound
		}
		return err
	}
	if err := expectAffected(res, ErrAlreadyMember); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE groups SET updated_at=NOW() WHERE id=$1`, groupID)
	return err
}

// RemoveMember deletes a membership row.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	if err := expectAffected(res, ErrNotMember); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE groups SET updated_at=NOW() WHERE id=$1`, groupID)
	return err
}

// SetGroupLastMessage moves the preview pointer and bumps updated_at.
func (r *GroupRepo) SetGroupLastMessage(ctx context.Context, groupID, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET last_message_id=$2, updated_at=NOW() WHERE id=$1`, groupID, messageID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrGroupNotFound)
}
