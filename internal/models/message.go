package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Chat kinds used on the wire and in forwarded-from references.
const (
	ChatKindOneToOne = "one2one"
	ChatKindGroup    = "group"
)

// Reactions maps an identity id (as a string key) to a single reaction
// value. One slot per identity, last write wins. Stored as JSONB.
type Reactions map[string]string

// Value implements driver.Valuer.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *Reactions) Scan(src any) error {
	if src == nil {
		*r = Reactions{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("reactions: unsupported scan source")
	}
	return json.Unmarshal(data, r)
}

// DirectMessage is a one-to-one message. The conversation is the
// unordered (sender, receiver) pair.
type DirectMessage struct {
	ID                int           `db:"id" json:"id"`
	SenderID          int           `db:"sender_id" json:"senderId"`
	ReceiverID        int           `db:"receiver_id" json:"receiverId"`
	ChatType          string        `db:"chat_type" json:"chatType"`
	Text              string        `db:"text" json:"text,omitempty"`
	MediaURL          string        `db:"media_url" json:"mediaUrl,omitempty"`
	MediaType         string        `db:"media_type" json:"mediaType,omitempty"`
	FileName          string        `db:"file_name" json:"fileName,omitempty"`
	Duration          int           `db:"duration" json:"duration,omitempty"`
	ReadBy            pq.Int64Array `db:"read_by" json:"readBy,omitempty"`
	IsDeleted         bool          `db:"is_deleted" json:"isDeleted"`
	ForwardedFromKind string        `db:"forwarded_from_kind" json:"-"`
	ForwardedFromID   int           `db:"forwarded_from_id" json:"-"`
	Reactions         Reactions     `db:"reactions" json:"reactions,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// ForwardedFrom references the message a forward was copied from.
type ForwardedFrom struct {
	Kind string `json:"type"`
	ID   int    `json:"id"`
}

// MarshalJSON adds the forwardedFrom object when present.
func (m DirectMessage) MarshalJSON() ([]byte, error) {
	type alias DirectMessage
	payload := struct {
		alias
		ForwardedFrom *ForwardedFrom `json:"forwardedFrom,omitempty"`
	}{alias: alias(m)}
	if m.ForwardedFromID != 0 {
		payload.ForwardedFrom = &ForwardedFrom{Kind: m.ForwardedFromKind, ID: m.ForwardedFromID}
	}
	return json.Marshal(payload)
}

// GroupMessage is identical in shape to DirectMessage but keyed by
// group id.
type GroupMessage struct {
	ID                int           `db:"id" json:"id"`
	GroupID           int           `db:"group_id" json:"groupId"`
	SenderID          int           `db:"sender_id" json:"senderId"`
	Text              string        `db:"text" json:"text,omitempty"`
	MediaURL          string        `db:"media_url" json:"mediaUrl,omitempty"`
	MediaType         string        `db:"media_type" json:"mediaType,omitempty"`
	FileName          string        `db:"file_name" json:"fileName,omitempty"`
	Duration          int           `db:"duration" json:"duration,omitempty"`
	ReadBy            pq.Int64Array `db:"read_by" json:"readBy,omitempty"`
	IsDeleted         bool          `db:"is_deleted" json:"isDeleted"`
	ForwardedFromKind string        `db:"forwarded_from_kind" json:"-"`
	ForwardedFromID   int           `db:"forwarded_from_id" json:"-"`
	Reactions         Reactions     `db:"reactions" json:"reactions,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// MarshalJSON adds the forwardedFrom object when present.
func (m GroupMessage) MarshalJSON() ([]byte, error) {
	type alias GroupMessage
	payload := struct {
		alias
		ForwardedFrom *ForwardedFrom `json:"forwardedFrom,omitempty"`
	}{alias: alias(m)}
	if m.ForwardedFromID != 0 {
		payload.ForwardedFrom = &ForwardedFrom{Kind: m.ForwardedFromKind, ID: m.ForwardedFromID}
	}
	return json.Marshal(payload)
}
