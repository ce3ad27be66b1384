package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"messaging-gateway/internal/models"
	"messaging-gateway/internal/repositories"
)

var (
	ErrValidation     = errors.New("missing required fields")
	ErrBlocked        = errors.New("delivery blocked")
	ErrNotParticipant = errors.New("not a conversation participant")
)

// Router is the slice of the hub the lifecycle manager needs: publish
// to one identity's personal channel, or to everyone. Group fan-out is
// expanded here into per-member personal-channel publishes.
type Router interface {
	SendToUser(userID int, event models.GatewayEvent)
	BroadcastAll(event models.GatewayEvent)
}

// Ingestor turns an inline-encoded payload into a content-store
// reference. Implemented by attachments.Ingestor.
type Ingestor interface {
	Ingest(ctx context.Context, chatKind string, fileName string, fileData string, mediaType string) (mediaURL string, storedName string, err error)
}

// Service is the message lifecycle manager. Every operation mutates the
// durable store first and fans out notifications after; failures are
// returned to the caller, which logs and drops them (the event channel
// is notification-only).
type Service struct {
	users     repositories.UserRepository
	groups    repositories.GroupRepository
	messages  repositories.MessageRepository
	groupMsgs repositories.GroupMessageRepository
	router    Router
	ingestor  Ingestor
}

// NewService constructs a Service.
func NewService(
	users repositories.UserRepository,
	groups repositories.GroupRepository,
	messages repositories.MessageRepository,
	groupMsgs repositories.GroupMessageRepository,
	router Router,
	ingestor Ingestor,
) *Service {
	return &Service{
		users:     users,
		groups:    groups,
		messages:  messages,
		groupMsgs: groupMsgs,
		router:    router,
		ingestor:  ingestor,
	}
}

// blocked applies the symmetric block predicate between two identities.
func (s *Service) blocked(ctx context.Context, senderID int, receiverID int) (bool, error) {
	return s.users.EitherBlocked(ctx, senderID, receiverID)
}

// SendDirect persists and routes a one-to-one message. Delivery is
// silently dropped when either party has blocked the other: no record,
// no notification, neither side told.
func (s *Service) SendDirect(ctx context.Context, senderID int, in models.PrivateMessageIn) error {
	if in.ToUserID == 0 || (in.Text == "" && in.MediaURL == "") {
		return ErrValidation
	}
	if _, err := s.users.GetUser(ctx, in.ToUserID); err != nil {
		return fmt.Errorf("resolve receiver: %w", err)
	}

	blocked, err := s.blocked(ctx, senderID, in.ToUserID)
	if err != nil {
		return fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return ErrBlocked
	}

	msg, err := s.messages.CreateMessage(ctx, models.DirectMessage{
		SenderID:   senderID,
		ReceiverID: in.ToUserID,
		Text:       in.Text,
		MediaURL:   in.MediaURL,
	})
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	s.router.SendToUser(in.ToUserID, models.GatewayEvent{Event: models.EvPrivateMessage, Data: msg})
	s.ackCreate(senderID, in.TempID, msg.ID)
	return nil
}

// SendGroup persists a group message and fans it out to every current
// member's personal channel, sender included.
func (s *Service) SendGroup(ctx context.Context, senderID int, in models.GroupMessageIn) error {
	if in.GroupID == 0 || (in.Text == "" && in.MediaURL == "") {
		return ErrValidation
	}

	group, err := s.groups.GetGroup(ctx, in.GroupID)
	if err != nil {
		return fmt.Errorf("resolve group: %w", err)
	}
	if !contains(group.Members, senderID) {
		return ErrNotParticipant
	}

	msg, err := s.groupMsgs.CreateGroupMessage(ctx, models.GroupMessage{
		GroupID:  in.GroupID,
		SenderID: senderID,
		Text:     in.Text,
		MediaURL: in.MediaURL,
	})
	if err != nil {
		return fmt.Errorf("store group message: %w", err)
	}

	s.fanOut(group.Members, models.GatewayEvent{Event: models.EvGroupMessage, Data: msg})
	s.ackCreate(senderID, in.TempID, msg.ID)
	return nil
}

// SendDirectFile ingests an inline attachment and runs the direct
// create path with the derived reference. Decode or store failure
// aborts before any record exists.
func (s *Service) SendDirectFile(ctx context.Context, senderID int, in models.FileSendIn) error {
	if in.ToUserID == 0 || in.FileName == "" || in.FileData == "" {
		return ErrValidation
	}
	if _, err := s.users.GetUser(ctx, in.ToUserID); err != nil {
		return fmt.Errorf("resolve receiver: %w", err)
	}

	blocked, err := s.blocked(ctx, senderID, in.ToUserID)
	if err != nil {
		return fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return ErrBlocked
	}

	mediaURL, storedName, err := s.ingestor.Ingest(ctx, models.ChatKindOneToOne, in.FileName, in.FileData, in.MediaType)
	if err != nil {
		return fmt.Errorf("ingest attachment: %w", err)
	}

	msg, err := s.messages.CreateMessage(ctx, models.DirectMessage{
		SenderID:   senderID,
		ReceiverID: in.ToUserID,
		MediaURL:   mediaURL,
		MediaType:  mediaTypeOrFile(in.MediaType),
		FileName:   storedName,
		Duration:   in.Duration,
		ReadBy:     pq.Int64Array{int64(senderID)},
	})
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}

	s.router.SendToUser(in.ToUserID, models.GatewayEvent{Event: models.EvPrivateMessage, Data: msg})
	s.ackCreate(senderID, in.TempID, msg.ID)
	return nil
}

// SendGroupFile ingests an inline attachment and runs the group create
// path with the derived reference.
func (s *Service) SendGroupFile(ctx context.Context, senderID int, in models.GroupFileSendIn) error {
	if in.GroupID == 0 || in.FileName == "" || in.FileData == "" {
		return ErrValidation
	}

	group, err := s.groups.GetGroup(ctx, in.GroupID)
	if err != nil {
		return fmt.Errorf("resolve group: %w", err)
	}
	if !contains(group.Members, senderID) {
		return ErrNotParticipant
	}

	mediaURL, storedName, err := s.ingestor.Ingest(ctx, models.ChatKindGroup, in.FileName, in.FileData, in.MediaType)
	if err != nil {
		return fmt.Errorf("ingest attachment: %w", err)
	}

	msg, err := s.groupMsgs.CreateGroupMessage(ctx, models.GroupMessage{
		GroupID:   in.GroupID,
		SenderID:  senderID,
		MediaURL:  mediaURL,
		MediaType: mediaTypeOrFile(in.MediaType),
		FileName:  storedName,
		Duration:  in.Duration,
		ReadBy:    pq.Int64Array{int64(senderID)},
	})
	if err != nil {
		return fmt.Errorf("store group message: %w", err)
	}

	s.fanOut(group.Members, models.GatewayEvent{Event: models.EvGroupMessage, Data: msg})
	s.ackCreate(senderID, in.TempID, msg.ID)
	return nil
}

// MarkRead adds the reader to a direct message's read set and notifies
// the original sender. No-op when the message does not exist.
func (s *Service) MarkRead(ctx context.Context, readerID int, messageID int) error {
	senderID, err := s.messages.MarkRead(ctx, messageID, readerID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.router.SendToUser(senderID, models.GatewayEvent{Event: models.EvMessageRead, Data: map[string]any{
		"messageId": messageID,
		"readBy":    readerID,
	}})
	return nil
}

// MarkGroupRead adds the reader to a group message's read set and
// notifies the original sender.
func (s *Service) MarkGroupRead(ctx context.Context, readerID int, groupMessageID int) error {
	senderID, err := s.groupMsgs.MarkRead(ctx, groupMessageID, readerID)
	if err != nil {
		return fmt.Errorf("mark group read: %w", err)
	}
	s.router.SendToUser(senderID, models.GatewayEvent{Event: models.EvGroupMessageRead, Data: map[string]any{
		"groupMessageId": groupMessageID,
		"readBy":         readerID,
	}})
	return nil
}

// EditDirect replaces the text of a caller-owned direct message and
// notifies both parties. Non-owners and deleted messages fail silently.
func (s *Service) EditDirect(ctx context.Context, callerID int, in models.UpdateMessageIn) error {
	if in.MessageID == 0 || in.NewText == "" {
		return ErrValidation
	}

	msg, err := s.messages.GetMessage(ctx, in.MessageID)
	if err != nil {
		return fmt.Errorf("resolve message: %w", err)
	}

	updatedAt, err := s.messages.UpdateText(ctx, in.MessageID, callerID, in.NewText)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	event := models.GatewayEvent{Event: models.EvMessageUpdated, Data: map[string]any{
		"messageId": in.MessageID,
		"newText":   in.NewText,
		"updatedAt": updatedAt,
	}}
	s.router.SendToUser(msg.SenderID, event)
	s.router.SendToUser(msg.ReceiverID, event)
	return nil
}

// EditGroup replaces the text of a caller-owned group message and
// notifies all current members.
func (s *Service) EditGroup(ctx context.Context, callerID int, in models.UpdateGroupMessageIn) error {
	if in.GroupMessageID == 0 || in.NewText == "" {
		return ErrValidation
	}

	msg, err := s.groupMsgs.GetGroupMessage(ctx, in.GroupMessageID)
	if err != nil {
		return fmt.Errorf("resolve group message: %w", err)
	}

	updatedAt, err := s.groupMsgs.UpdateText(ctx, in.GroupMessageID, callerID, in.NewText)
	if err != nil {
		return fmt.Errorf("update group message: %w", err)
	}

	members, err := s.groups.MemberIDs(ctx, msg.GroupID)
	if err != nil {
		return fmt.Errorf("resolve members: %w", err)
	}
	s.fanOut(members, models.GatewayEvent{Event: models.EvGroupMessageUpdated, Data: map[string]any{
		"groupMessageId": in.GroupMessageID,
		"groupId":        msg.GroupID,
		"newText":        in.NewText,
		"updatedAt":      updatedAt,
	}})
	return nil
}

// DeleteDirect soft-deletes a caller-owned direct message and tells
// both parties to drop it from any live view.
func (s *Service) DeleteDirect(ctx context.Context, callerID int, in models.DeleteDirectIn) error {
	msg, err := s.messages.GetMessage(ctx, in.MessageID)
	if err != nil {
		return fmt.Errorf("resolve message: %w", err)
	}

	if err := s.messages.SoftDelete(ctx, in.MessageID, callerID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	event := models.GatewayEvent{Event: models.EvMessageDeleted, Data: map[string]any{"messageId": in.MessageID}}
	s.router.SendToUser(msg.SenderID, event)
	s.router.SendToUser(msg.ReceiverID, event)
	return nil
}

// DeleteGroup soft-deletes a caller-owned group message and notifies
// all current members.
func (s *Service) DeleteGroup(ctx context.Context, callerID int, in models.DeleteGroupIn) error {
	msg, err := s.groupMsgs.GetGroupMessage(ctx, in.GroupMessageID)
	if err != nil {
		return fmt.Errorf("resolve group message: %w", err)
	}

	if err := s.groupMsgs.SoftDelete(ctx, in.GroupMessageID, callerID); err != nil {
		return fmt.Errorf("delete group message: %w", err)
	}

	members, err := s.groups.MemberIDs(ctx, msg.GroupID)
	if err != nil {
		return fmt.Errorf("resolve members: %w", err)
	}
	s.fanOut(members, models.GatewayEvent{Event: models.EvGroupMessageDeleted, Data: map[string]any{
		"groupMessageId": in.GroupMessageID,
	}})
	return nil
}

// AddReaction upserts the caller's reaction slot on a message it can
// see and notifies all participants.
func (s *Service) AddReaction(ctx context.Context, callerID int, in models.ReactionIn) error {
	if in.MessageID == 0 || in.Reaction == "" {
		return ErrValidation
	}
	return s.applyReaction(ctx, callerID, in, true)
}

// RemoveReaction clears the caller's reaction slot and notifies all
// participants.
func (s *Service) RemoveReaction(ctx context.Context, callerID int, in models.ReactionIn) error {
	if in.MessageID == 0 {
		return ErrValidation
	}
	return s.applyReaction(ctx, callerID, in, false)
}

func (s *Service) applyReaction(ctx context.Context, callerID int, in models.ReactionIn, add bool) error {
	switch in.MessageType {
	case models.ChatKindOneToOne:
		msg, err := s.messages.GetMessage(ctx, in.MessageID)
		if err != nil {
			return fmt.Errorf("resolve message: %w", err)
		}
		if callerID != msg.SenderID && callerID != msg.ReceiverID {
			return ErrNotParticipant
		}

		event := models.EvReactionRemoved
		if add {
			if err := s.messages.UpsertReaction(ctx, in.MessageID, callerID, in.Reaction); err != nil {
				return fmt.Errorf("store reaction: %w", err)
			}
			event = models.EvReactionAdded
		} else if err := s.messages.RemoveReaction(ctx, in.MessageID, callerID); err != nil {
			return fmt.Errorf("remove reaction: %w", err)
		}

		payload := models.GatewayEvent{Event: event, Data: reactionPayload("messageId", in.MessageID, callerID, in.Reaction, add)}
		s.router.SendToUser(msg.SenderID, payload)
		s.router.SendToUser(msg.ReceiverID, payload)
		return nil

	case models.ChatKindGroup:
		msg, err := s.groupMsgs.GetGroupMessage(ctx, in.MessageID)
		if err != nil {
			return fmt.Errorf("resolve group message: %w", err)
		}
		member, err := s.groups.IsMember(ctx, msg.GroupID, callerID)
		if err != nil {
			return fmt.Errorf("membership check: %w", err)
		}
		if !member {
			return ErrNotParticipant
		}

		event := models.EvGroupReactionRemoved
		if add {
			if err := s.groupMsgs.UpsertReaction(ctx, in.MessageID, callerID, in.Reaction); err != nil {
				return fmt.Errorf("store reaction: %w", err)
			}
			event = models.EvGroupReactionAdded
		} else if err := s.groupMsgs.RemoveReaction(ctx, in.MessageID, callerID); err != nil {
			return fmt.Errorf("remove reaction: %w", err)
		}

		members, err := s.groups.MemberIDs(ctx, msg.GroupID)
		if err != nil {
			return fmt.Errorf("resolve members: %w", err)
		}
		s.fanOut(members, models.GatewayEvent{Event: event, Data: reactionPayload("groupMessageId", in.MessageID, callerID, in.Reaction, add)})
		return nil

	default:
		return ErrValidation
	}
}

// Forward copies a non-deleted message the caller can see into a target
// conversation the caller belongs to, stamping the forwardedFrom
// reference, and routes it as a normal create.
func (s *Service) Forward(ctx context.Context, callerID int, in models.ForwardIn) error {
	if in.OriginalMessageID == 0 || in.TargetID == 0 {
		return ErrValidation
	}

	var content models.DirectMessage
	switch in.OriginalMessageType {
	case models.ChatKindOneToOne:
		msg, err := s.messages.GetMessage(ctx, in.OriginalMessageID)
		if err != nil {
			return fmt.Errorf("resolve original: %w", err)
		}
		if msg.IsDeleted {
			return repositories.ErrMessageNotFound
		}
		if callerID != msg.SenderID && callerID != msg.ReceiverID {
			return ErrNotParticipant
		}
		content = msg
	case models.ChatKindGroup:
		msg, err := s.groupMsgs.GetGroupMessage(ctx, in.OriginalMessageID)
		if err != nil {
			return fmt.Errorf("resolve original: %w", err)
		}
		if msg.IsDeleted {
			return repositories.ErrMessageNotFound
		}
		member, err := s.groups.IsMember(ctx, msg.GroupID, callerID)
		if err != nil {
			return fmt.Errorf("membership check: %w", err)
		}
		if !member {
			return ErrNotParticipant
		}
		content = models.DirectMessage{
			Text:      msg.Text,
			MediaURL:  msg.MediaURL,
			MediaType: msg.MediaType,
			FileName:  msg.FileName,
			Duration:  msg.Duration,
		}
	default:
		return ErrValidation
	}

	switch in.TargetType {
	case models.ChatKindOneToOne:
		if _, err := s.users.GetUser(ctx, in.TargetID); err != nil {
			return fmt.Errorf("resolve target: %w", err)
		}
		blocked, err := s.blocked(ctx, callerID, in.TargetID)
		if err != nil {
			return fmt.Errorf("block check: %w", err)
		}
		if blocked {
			return ErrBlocked
		}

		msg, err := s.messages.CreateMessage(ctx, models.DirectMessage{
			SenderID:          callerID,
			ReceiverID:        in.TargetID,
			Text:              content.Text,
			MediaURL:          content.MediaURL,
			MediaType:         content.MediaType,
			FileName:          content.FileName,
			Duration:          content.Duration,
			ForwardedFromKind: in.OriginalMessageType,
			ForwardedFromID:   in.OriginalMessageID,
		})
		if err != nil {
			return fmt.Errorf("store forward: %w", err)
		}
		s.router.SendToUser(in.TargetID, models.GatewayEvent{Event: models.EvPrivateMessage, Data: msg})
		return nil

	case models.ChatKindGroup:
		group, err := s.groups.GetGroup(ctx, in.TargetID)
		if err != nil {
			return fmt.Errorf("resolve target group: %w", err)
		}
		if !contains(group.Members, callerID) {
			return ErrNotParticipant
		}

		msg, err := s.groupMsgs.CreateGroupMessage(ctx, models.GroupMessage{
			GroupID:           in.TargetID,
			SenderID:          callerID,
			Text:              content.Text,
			MediaURL:          content.MediaURL,
			MediaType:         content.MediaType,
			FileName:          content.FileName,
			Duration:          content.Duration,
			ForwardedFromKind: in.OriginalMessageType,
			ForwardedFromID:   in.OriginalMessageID,
		})
		if err != nil {
			return fmt.Errorf("store forward: %w", err)
		}
		s.fanOut(group.Members, models.GatewayEvent{Event: models.EvGroupMessage, Data: msg})
		return nil

	default:
		return ErrValidation
	}
}

// ackCreate reconciles optimistic client state: {tempId -> assigned id}
// back to the caller's own personal channel.
func (s *Service) ackCreate(senderID int, tempID string, messageID int) {
	if tempID == "" {
		return
	}
	s.router.SendToUser(senderID, models.GatewayEvent{Event: models.EvMessageSent, Data: map[string]any{
		"tempId":    tempID,
		"messageId": messageID,
	}})
}

func (s *Service) fanOut(members []int, event models.GatewayEvent) {
	for _, memberID := range members {
		s.router.SendToUser(memberID, event)
	}
}

func reactionPayload(idKey string, messageID int, userID int, reaction string, add bool) map[string]any {
	payload := map[string]any{
		idKey:    messageID,
		"userId": userID,
	}
	if add {
		payload["reaction"] = reaction
	}
	return payload
}

func mediaTypeOrFile(mediaType string) string {
	if mediaType == "" {
		return "file"
	}
	return mediaType
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
