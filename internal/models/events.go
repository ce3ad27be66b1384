package models

import "encoding/json"

// Gateway event names, inbound.
const (
	EvPrivateMessage     = "private_message"
	EvGroupMessage       = "group_message"
	EvFileSend           = "file_send"
	EvGroupFileSend      = "group_file_send"
	EvTyping             = "typing"
	EvMarkRead           = "mark_read"
	EvMarkGroupRead      = "mark_group_read"
	EvDeleteDirect       = "delete_one_to_one_message"
	EvDeleteGroup        = "delete_group_message"
	EvUpdateMessage      = "update_message"
	EvUpdateGroupMessage = "update_group_message"
	EvAddReaction        = "add_reaction"
	EvRemoveReaction     = "remove_reaction"
	EvForwardMessage     = "forward_message"
)

// Gateway event names, outbound.
const (
	EvMessageSent          = "message_sent"
	EvMessageUpdated       = "message_updated"
	EvGroupMessageUpdated  = "group_message_updated"
	EvMessageDeleted       = "message_deleted"
	EvGroupMessageDeleted  = "group_message_deleted"
	EvMessageRead          = "message_read"
	EvGroupMessageRead     = "group_message_read"
	EvReactionAdded        = "reaction_added"
	EvReactionRemoved      = "reaction_removed"
	EvGroupReactionAdded   = "group_reaction_added"
	EvGroupReactionRemoved = "group_reaction_removed"
	EvUserOnline           = "user_online"
	EvUserOffline          = "user_offline"
	EvOnlineUsers          = "online_users"
)

// ClientEvent is the inbound wire envelope.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GatewayEvent is the outbound wire envelope.
type GatewayEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound payloads, keys as the clients send them.

type PrivateMessageIn struct {
	ToUserID int    `json:"toUserId"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	TempID   string `json:"tempId,omitempty"`
}

type GroupMessageIn struct {
	GroupID  int    `json:"groupId"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	TempID   string `json:"tempId,omitempty"`
}

type FileSendIn struct {
	ToUserID  int    `json:"toUserId"`
	FileName  string `json:"fileName"`
	FileData  string `json:"fileData"`
	MediaType string `json:"mediaType,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	TempID    string `json:"tempId,omitempty"`
}

type GroupFileSendIn struct {
	GroupID   int    `json:"groupId"`
	FileName  string `json:"fileName"`
	FileData  string `json:"fileData"`
	MediaType string `json:"mediaType,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	TempID    string `json:"tempId,omitempty"`
}

type TypingIn struct {
	ToUserID int `json:"toUserId,omitempty"`
	GroupID  int `json:"groupId,omitempty"`
}

type MarkReadIn struct {
	MessageID int `json:"messageId"`
}

type MarkGroupReadIn struct {
	GroupMessageID int `json:"groupMessageId"`
}

type DeleteDirectIn struct {
	MessageID int `json:"messageId"`
	ToUserID  int `json:"toUserId"`
}

type DeleteGroupIn struct {
	GroupMessageID int `json:"groupMessageId"`
	GroupID        int `json:"groupId"`
}

type UpdateMessageIn struct {
	MessageID int    `json:"messageId"`
	NewText   string `json:"newText"`
}

type UpdateGroupMessageIn struct {
	GroupMessageID int    `json:"groupMessageId"`
	GroupID        int    `json:"groupId"`
	NewText        string `json:"newText"`
}

type ReactionIn struct {
	MessageType string `json:"messageType"`
	MessageID   int    `json:"messageId"`
	Reaction    string `json:"reaction,omitempty"`
}

type ForwardIn struct {
	OriginalMessageType string `json:"originalMessageType"`
	OriginalMessageID   int    `json:"originalMessageId"`
	TargetType          string `json:"targetType"`
	TargetID            int    `json:"targetId"`
}
