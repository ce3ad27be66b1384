package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-gateway/internal/mocks"
	"messaging-gateway/internal/models"
	"messaging-gateway/internal/repositories"
)

type serviceFixture struct {
	users     *mocks.UserRepositoryMock
	groups    *mocks.GroupRepositoryMock
	messages  *mocks.MessageRepositoryMock
	groupMsgs *mocks.GroupMessageRepositoryMock
	router    *mocks.RouterMock
	ingestor  *mocks.IngestorMock
	svc       *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		users:     new(mocks.UserRepositoryMock),
		groups:    new(mocks.GroupRepositoryMock),
		messages:  new(mocks.MessageRepositoryMock),
		groupMsgs: new(mocks.GroupMessageRepositoryMock),
		router:    new(mocks.RouterMock),
		ingestor:  new(mocks.IngestorMock),
	}
	f.svc = NewService(f.users, f.groups, f.messages, f.groupMsgs, f.router, f.ingestor)
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.users.AssertExpectations(t)
	f.groups.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.groupMsgs.AssertExpectations(t)
	f.router.AssertExpectations(t)
	f.ingestor.AssertExpectations(t)
}

func eventNamed(name string) any {
	return mock.MatchedBy(func(event models.GatewayEvent) bool {
		return event.Event == name
	})
}

func TestSendDirectRoutesAndAcks(t *testing.T) {
	f := newServiceFixture()

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 2).Return(false, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.DirectMessage) bool {
		return msg.SenderID == 1 && msg.ReceiverID == 2 && msg.Text == "hi"
	})).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2, Text: "hi"}, nil).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvPrivateMessage)).Once()
	f.router.On("SendToUser", 1, mock.MatchedBy(func(event models.GatewayEvent) bool {
		if event.Event != models.EvMessageSent {
			return false
		}
		payload := event.Data.(map[string]any)
		return payload["tempId"] == "tmp-1" && payload["messageId"] == 7
	})).Once()

	err := f.svc.SendDirect(context.Background(), 1, models.PrivateMessageIn{ToUserID: 2, Text: "hi", TempID: "tmp-1"})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestSendDirectWithoutTempIDSkipsAck(t *testing.T) {
	f := newServiceFixture()

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 2).Return(false, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(models.DirectMessage{ID: 8, SenderID: 1, ReceiverID: 2}, nil).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvPrivateMessage)).Once()

	err := f.svc.SendDirect(context.Background(), 1, models.PrivateMessageIn{ToUserID: 2, Text: "hi"})
	require.NoError(t, err)
	f.router.AssertNumberOfCalls(t, "SendToUser", 1)
	f.assertExpectations(t)
}

func TestSendDirectBlockedDropsSilently(t *testing.T) {
	f := newServiceFixture()

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 2).Return(true, nil).Once()

	err := f.svc.SendDirect(context.Background(), 1, models.PrivateMessageIn{ToUserID: 2, Text: "hi"})
	require.ErrorIs(t, err, ErrBlocked)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	f.router.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSendDirectRequiresContent(t *testing.T) {
	f := newServiceFixture()

	err := f.svc.SendDirect(context.Background(), 1, models.PrivateMessageIn{ToUserID: 2})
	require.ErrorIs(t, err, ErrValidation)

	err = f.svc.SendDirect(context.Background(), 1, models.PrivateMessageIn{Text: "hi"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSendGroupFansOutToAllMembers(t *testing.T) {
	f := newServiceFixture()

	f.groups.On("GetGroup", mock.Anything, 4).Return(models.Group{ID: 4, Members: []int{1, 2, 3}}, nil).Once()
	f.groupMsgs.On("CreateGroupMessage", mock.Anything, mock.MatchedBy(func(msg models.GroupMessage) bool {
		return msg.GroupID == 4 && msg.SenderID == 1 && msg.Text == "hey"
	})).Return(models.GroupMessage{ID: 11, GroupID: 4, SenderID: 1, Text: "hey"}, nil).Once()
	f.router.On("SendToUser", 1, eventNamed(models.EvGroupMessage)).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvGroupMessage)).Once()
	f.router.On("SendToUser", 3, eventNamed(models.EvGroupMessage)).Once()

	err := f.svc.SendGroup(context.Background(), 1, models.GroupMessageIn{GroupID: 4, Text: "hey"})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestSendGroupRejectsNonMember(t *testing.T) {
	f := newServiceFixture()

	f.groups.On("GetGroup", mock.Anything, 4).Return(models.Group{ID: 4, Members: []int{2, 3}}, nil).Once()

	err := f.svc.SendGroup(context.Background(), 1, models.GroupMessageIn{GroupID: 4, Text: "hey"})
	require.ErrorIs(t, err, ErrNotParticipant)
	f.groupMsgs.AssertNotCalled(t, "CreateGroupMessage", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestSendDirectFileIngestsThenStores(t *testing.T) {
	f := newServiceFixture()

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 2).Return(false, nil).Once()
	f.ingestor.On("Ingest", mock.Anything, models.ChatKindOneToOne, "pic.png", "aGVsbG8=", "image").
		Return("http://cdn/mediaFiles/oneToOne/x-pic.png", "x-pic.png", nil).Once()
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.DirectMessage) bool {
		return msg.MediaURL == "http://cdn/mediaFiles/oneToOne/x-pic.png" &&
			msg.MediaType == "image" &&
			msg.FileName == "x-pic.png" &&
			len(msg.ReadBy) == 1 && msg.ReadBy[0] == 1
	})).Return(models.DirectMessage{ID: 20, SenderID: 1, ReceiverID: 2}, nil).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvPrivateMessage)).Once()

	err := f.svc.SendDirectFile(context.Background(), 1, models.FileSendIn{
		ToUserID:  2,
		FileName:  "pic.png",
		FileData:  "aGVsbG8=",
		MediaType: "image",
	})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestSendDirectFileIngestFailureAborts(t *testing.T) {
	f := newServiceFixture()

	f.users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 2).Return(false, nil).Once()
	f.ingestor.On("Ingest", mock.Anything, models.ChatKindOneToOne, "pic.png", "broken", "").
		Return("", "", assert.AnError).Once()

	err := f.svc.SendDirectFile(context.Background(), 1, models.FileSendIn{ToUserID: 2, FileName: "pic.png", FileData: "broken"})
	require.Error(t, err)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMarkReadNotifiesSender(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("MarkRead", mock.Anything, 7, 2).Return(9, nil).Once()
	f.router.On("SendToUser", 9, mock.MatchedBy(func(event models.GatewayEvent) bool {
		if event.Event != models.EvMessageRead {
			return false
		}
		payload := event.Data.(map[string]any)
		return payload["messageId"] == 7 && payload["readBy"] == 2
	})).Once()

	err := f.svc.MarkRead(context.Background(), 2, 7)
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestMarkReadMissingMessage(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("MarkRead", mock.Anything, 7, 2).Return(0, repositories.ErrMessageNotFound).Once()

	err := f.svc.MarkRead(context.Background(), 2, 7)
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	f.router.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestEditDirectNotifiesBothParties(t *testing.T) {
	f := newServiceFixture()
	updatedAt := time.Now()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2}, nil).Once()
	f.messages.On("UpdateText", mock.Anything, 7, 1, "edited").Return(updatedAt, nil).Once()
	f.router.On("SendToUser", 1, eventNamed(models.EvMessageUpdated)).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvMessageUpdated)).Once()

	err := f.svc.EditDirect(context.Background(), 1, models.UpdateMessageIn{MessageID: 7, NewText: "edited"})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestEditDirectOwnershipEnforcedByStore(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 9, ReceiverID: 2}, nil).Once()
	f.messages.On("UpdateText", mock.Anything, 7, 1, "edited").Return(time.Time{}, repositories.ErrMessageNotFound).Once()

	err := f.svc.EditDirect(context.Background(), 1, models.UpdateMessageIn{MessageID: 7, NewText: "edited"})
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	f.router.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestDeleteGroupNotifiesMembers(t *testing.T) {
	f := newServiceFixture()

	f.groupMsgs.On("GetGroupMessage", mock.Anything, 11).Return(models.GroupMessage{ID: 11, GroupID: 4, SenderID: 1}, nil).Once()
	f.groupMsgs.On("SoftDelete", mock.Anything, 11, 1).Return(nil).Once()
	f.groups.On("MemberIDs", mock.Anything, 4).Return([]int{1, 2}, nil).Once()
	f.router.On("SendToUser", 1, eventNamed(models.EvGroupMessageDeleted)).Once()
	f.router.On("SendToUser", 2, eventNamed(models.EvGroupMessageDeleted)).Once()

	err := f.svc.DeleteGroup(context.Background(), 1, models.DeleteGroupIn{GroupMessageID: 11, GroupID: 4})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestAddReactionDirectRequiresParticipant(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 5, ReceiverID: 6}, nil).Once()

	err := f.svc.AddReaction(context.Background(), 1, models.ReactionIn{MessageType: models.ChatKindOneToOne, MessageID: 7, Reaction: "👍"})
	require.ErrorIs(t, err, ErrNotParticipant)
	f.messages.AssertNotCalled(t, "UpsertReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestAddReactionDirectNotifiesBothParties(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2}, nil).Once()
	f.messages.On("UpsertReaction", mock.Anything, 7, 1, "👍").Return(nil).Once()
	reactionAdded := mock.MatchedBy(func(event models.GatewayEvent) bool {
		if event.Event != models.EvReactionAdded {
			return false
		}
		payload := event.Data.(map[string]any)
		return payload["messageId"] == 7 && payload["userId"] == 1 && payload["reaction"] == "👍"
	})
	f.router.On("SendToUser", 1, reactionAdded).Once()
	f.router.On("SendToUser", 2, reactionAdded).Once()

	err := f.svc.AddReaction(context.Background(), 1, models.ReactionIn{MessageType: models.ChatKindOneToOne, MessageID: 7, Reaction: "👍"})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestRemoveReactionGroupOmitsReactionField(t *testing.T) {
	f := newServiceFixture()

	f.groupMsgs.On("GetGroupMessage", mock.Anything, 11).Return(models.GroupMessage{ID: 11, GroupID: 4, SenderID: 2}, nil).Once()
	f.groups.On("IsMember", mock.Anything, 4, 1).Return(true, nil).Once()
	f.groupMsgs.On("RemoveReaction", mock.Anything, 11, 1).Return(nil).Once()
	f.groups.On("MemberIDs", mock.Anything, 4).Return([]int{1, 2}, nil).Once()
	reactionRemoved := mock.MatchedBy(func(event models.GatewayEvent) bool {
		if event.Event != models.EvGroupReactionRemoved {
			return false
		}
		payload := event.Data.(map[string]any)
		_, hasReaction := payload["reaction"]
		return payload["groupMessageId"] == 11 && payload["userId"] == 1 && !hasReaction
	})
	f.router.On("SendToUser", 1, reactionRemoved).Once()
	f.router.On("SendToUser", 2, reactionRemoved).Once()

	err := f.svc.RemoveReaction(context.Background(), 1, models.ReactionIn{MessageType: models.ChatKindGroup, MessageID: 11})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestForwardDirectToGroupStampsOrigin(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2, Text: "orig"}, nil).Once()
	f.groups.On("GetGroup", mock.Anything, 4).Return(models.Group{ID: 4, Members: []int{1, 3}}, nil).Once()
	f.groupMsgs.On("CreateGroupMessage", mock.Anything, mock.MatchedBy(func(msg models.GroupMessage) bool {
		return msg.GroupID == 4 && msg.SenderID == 1 && msg.Text == "orig" &&
			msg.ForwardedFromKind == models.ChatKindOneToOne && msg.ForwardedFromID == 7
	})).Return(models.GroupMessage{ID: 30, GroupID: 4, SenderID: 1, Text: "orig"}, nil).Once()
	f.router.On("SendToUser", 1, eventNamed(models.EvGroupMessage)).Once()
	f.router.On("SendToUser", 3, eventNamed(models.EvGroupMessage)).Once()

	err := f.svc.Forward(context.Background(), 1, models.ForwardIn{
		OriginalMessageType: models.ChatKindOneToOne,
		OriginalMessageID:   7,
		TargetType:          models.ChatKindGroup,
		TargetID:            4,
	})
	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestForwardDeletedOriginalRejected(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2, IsDeleted: true}, nil).Once()

	err := f.svc.Forward(context.Background(), 1, models.ForwardIn{
		OriginalMessageType: models.ChatKindOneToOne,
		OriginalMessageID:   7,
		TargetType:          models.ChatKindOneToOne,
		TargetID:            3,
	})
	require.ErrorIs(t, err, repositories.ErrMessageNotFound)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestForwardBlockedTargetRejected(t *testing.T) {
	f := newServiceFixture()

	f.messages.On("GetMessage", mock.Anything, 7).Return(models.DirectMessage{ID: 7, SenderID: 1, ReceiverID: 2, Text: "orig"}, nil).Once()
	f.users.On("GetUser", mock.Anything, 3).Return(models.User{ID: 3}, nil).Once()
	f.users.On("EitherBlocked", mock.Anything, 1, 3).Return(true, nil).Once()

	err := f.svc.Forward(context.Background(), 1, models.ForwardIn{
		OriginalMessageType: models.ChatKindOneToOne,
		OriginalMessageID:   7,
		TargetType:          models.ChatKindOneToOne,
		TargetID:            3,
	})
	require.ErrorIs(t, err, ErrBlocked)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}
