package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-gateway/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts identity lookups and presence writes.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	SetPresence(ctx context.Context, userID int, statusMsg string, lastSeen *time.Time) error
	EitherBlocked(ctx context.Context, userID int, otherID int) (bool, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, first_name, last_name, email, password_hash, status_msg, last_seen, contacts, blocked_users, created_at, updated_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// SetPresence updates the presence label and, when provided, last_seen.
func (r *UserRepo) SetPresence(ctx context.Context, userID int, statusMsg string, lastSeen *time.Time) error {
	var res sql.Result
	var err error
	if lastSeen != nil {
		res, err = r.db.ExecContext(ctx, `UPDATE users SET status_msg=$2, last_seen=$3, updated_at=NOW() WHERE id=$1`, userID, statusMsg, *lastSeen)
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE users SET status_msg=$2, updated_at=NOW() WHERE id=$1`, userID, statusMsg)
	}
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EitherBlocked reports whether either user has blocked the other.
func (r *UserRepo) EitherBlocked(ctx context.Context, userID int, otherID int) (bool, error) {
	var blocked bool
	err := r.db.GetContext(ctx, &blocked, `SELECT EXISTS(
        SELECT 1 FROM users
        WHERE (id=$1 AND $2 = ANY(blocked_users))
           OR (id=$2 AND $1 = ANY(blocked_users)))`, userID, otherID)
	return blocked, err
}
