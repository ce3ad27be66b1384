package models

import (
	"time"

	"github.com/lib/pq"
)

// User is an identity participating in conversations. Password and
// profile fields are owned by the account API; the gateway only reads
// block lists and writes presence fields.
type User struct {
	ID           int           `db:"id" json:"id"`
	FirstName    string        `db:"first_name" json:"firstName,omitempty"`
	LastName     string        `db:"last_name" json:"lastName,omitempty"`
	Email        string        `db:"email" json:"email,omitempty"`
	PasswordHash string        `db:"password_hash" json:"-"`
	StatusMsg    string        `db:"status_msg" json:"statusMsg"`
	LastSeen     *time.Time    `db:"last_seen" json:"lastSeen,omitempty"`
	Contacts     pq.Int64Array `db:"contacts" json:"contacts,omitempty"`
	BlockedUsers pq.Int64Array `db:"blocked_users" json:"blockedUsers,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}
