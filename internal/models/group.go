package models

import "time"

// Group represents a chat group. Membership lives in group_members and
// is fixed from the gateway's point of view.
type Group struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int       `db:"owner_id" json:"ownerId"`
	IsDeleted bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// Members is loaded by GroupRepo.GetGroup, not a column.
	Members []int `db:"-" json:"members,omitempty"`
}
