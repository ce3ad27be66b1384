package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-gateway/internal/models"
)

const groupMessageColumns = `id, group_id, sender_id, text, media_url, media_type, file_name, duration, read_by, is_deleted, forwarded_from_kind, forwarded_from_id, reactions, created_at, updated_at`

// GroupMessageRepository defines interactions for group messages.
type GroupMessageRepository interface {
	CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error)
	GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error)
	ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error)
	UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error)
	SoftDelete(ctx context.Context, messageID int, senderID int) error
	MarkRead(ctx context.Context, messageID int, readerID int) (int, error)
	UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error
	RemoveReaction(ctx context.Context, messageID int, userID int) error
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// CreateGroupMessage persists a group message.
func (r *GroupMessageRepo) CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	var out models.GroupMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO group_messages
        (group_id, sender_id, text, media_url, media_type, file_name, duration, read_by, forwarded_from_kind, forwarded_from_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+groupMessageColumns,
		msg.GroupID, msg.SenderID, msg.Text, msg.MediaURL, msg.MediaType, msg.FileName, msg.Duration, msg.ReadBy, msg.ForwardedFromKind, msg.ForwardedFromID).
		StructScan(&out)
	return out, err
}

// GetGroupMessage fetches a single message.
func (r *GroupMessageRepo) GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+groupMessageColumns+` FROM group_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// ListGroupMessages returns non-deleted messages ordered by creation.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages WHERE group_id=$1 AND is_deleted = FALSE ORDER BY created_at ASC`, groupID)
	return msgs, err
}

// UpdateText replaces the text of a message owned by senderID.
func (r *GroupMessageRepo) UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRowxContext(ctx, `UPDATE group_messages SET text=$3, updated_at=NOW()
        WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE
        RETURNING updated_at`, messageID, senderID, text).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrMessageNotFound
	}
	return updatedAt, err
}

// SoftDelete hides a message owned by senderID.
func (r *GroupMessageRepo) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET is_deleted = TRUE, updated_at=NOW() WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE`, messageID, senderID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkRead adds readerID to read_by (idempotent) and returns the sender id.
func (r *GroupMessageRepo) MarkRead(ctx context.Context, messageID int, readerID int) (int, error) {
	var senderID int
	err := r.db.QueryRowxContext(ctx, `UPDATE group_messages
        SET read_by = CASE WHEN $2 = ANY(read_by) THEN read_by ELSE array_append(read_by, $2) END
        WHERE id=$1 AND is_deleted = FALSE
        RETURNING sender_id`, messageID, readerID).Scan(&senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMessageNotFound
	}
	return senderID, err
}

// UpsertReaction sets the caller's single reaction slot.
func (r *GroupMessageRepo) UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET reactions = reactions || jsonb_build_object($2::text, $3::text), updated_at=NOW()
        WHERE id=$1 AND is_deleted = FALSE`, messageID, strconv.Itoa(userID), reaction)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RemoveReaction clears the caller's reaction slot.
func (r *GroupMessageRepo) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET reactions = reactions - $2, updated_at=NOW()
        WHERE id=$1 AND is_deleted = FALSE`, messageID, strconv.Itoa(userID))
	if err != nil {
		return err
	}
	return requireRow(res)
}
