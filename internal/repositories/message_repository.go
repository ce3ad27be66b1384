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

var ErrMessageNotFound = errors.New("message not found")

const directMessageColumns = `id, sender_id, receiver_id, chat_type, text, media_url, media_type, file_name, duration, read_by, is_deleted, forwarded_from_kind, forwarded_from_id, reactions, created_at, updated_at`

// MessageRepository defines interactions for direct messages. Each
// mutation is a single guarded statement; the store, not the caller,
// provides record-level atomicity.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.DirectMessage) (models.DirectMessage, error)
	GetMessage(ctx context.Context, messageID int) (models.DirectMessage, error)
	ListConversation(ctx context.Context, userID int, otherID int) ([]models.DirectMessage, error)
	UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error)
	SoftDelete(ctx context.Context, messageID int, senderID int) error
	MarkRead(ctx context.Context, messageID int, readerID int) (int, error)
	UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error
	RemoveReaction(ctx context.Context, messageID int, userID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a direct message and returns the stored record
// with its store-assigned id and timestamps.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.DirectMessage) (models.DirectMessage, error) {
	var out models.DirectMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages
        (sender_id, receiver_id, chat_type, text, media_url, media_type, file_name, duration, read_by, forwarded_from_kind, forwarded_from_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING `+directMessageColumns,
		msg.SenderID, msg.ReceiverID, models.ChatKindOneToOne, msg.Text, msg.MediaURL, msg.MediaType, msg.FileName, msg.Duration, msg.ReadBy, msg.ForwardedFromKind, msg.ForwardedFromID).
		StructScan(&out)
	return out, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.DirectMessage, error) {
	var msg models.DirectMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+directMessageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// ListConversation returns the non-deleted messages of the unordered
// (userID, otherID) pair ordered by creation time.
func (r *MessageRepo) ListConversation(ctx context.Context, userID int, otherID int) ([]models.DirectMessage, error) {
	var msgs []models.DirectMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+directMessageColumns+` FROM messages
        WHERE is_deleted = FALSE
        AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        ORDER BY created_at ASC`, userID, otherID)
	return msgs, err
}

// UpdateText replaces the text of a message owned by senderID. Deleted
// messages are not editable.
func (r *MessageRepo) UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET text=$3, updated_at=NOW()
        WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE
        RETURNING updated_at`, messageID, senderID, text).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrMessageNotFound
	}
	return updatedAt, err
}

// SoftDelete hides a message owned by senderID. The record is retained.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted = TRUE, updated_at=NOW() WHERE id=$1 AND sender_id=$2 AND is_deleted = FALSE`, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkRead adds readerID to read_by (idempotent) and returns the sender
// id so the caller can notify it.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int, readerID int) (int, error) {
	var senderID int
	err := r.db.QueryRowxContext(ctx, `UPDATE messages
        SET read_by = CASE WHEN $2 = ANY(read_by) THEN read_by ELSE array_append(read_by, $2) END
        WHERE id=$1 AND is_deleted = FALSE
        RETURNING sender_id`, messageID, readerID).Scan(&senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMessageNotFound
	}
	return senderID, err
}

// UpsertReaction sets the caller's single reaction slot, replacing any
// previous value.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET reactions = reactions || jsonb_build_object($2::text, $3::text), updated_at=NOW()
        WHERE id=$1 AND is_deleted = FALSE`, messageID, strconv.Itoa(userID), reaction)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RemoveReaction clears the caller's reaction slot.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET reactions = reactions - $2, updated_at=NOW()
        WHERE id=$1 AND is_deleted = FALSE`, messageID, strconv.Itoa(userID))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
