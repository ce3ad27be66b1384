package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-gateway/internal/models"
	"messaging-gateway/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, userID int, statusMsg string, lastSeen *time.Time) error {
	args := m.Called(ctx, userID, statusMsg, lastSeen)
	return args.Error(0)
}

func (m *UserRepositoryMock) EitherBlocked(ctx context.Context, userID int, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID int, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) MemberIDs(ctx context.Context, groupID int) ([]int, error) {
	args := m.Called(ctx, groupID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupIDsForUser(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.DirectMessage) (models.DirectMessage, error) {
	args := m.Called(ctx, msg)
	var created models.DirectMessage
	if val := args.Get(0); val != nil {
		created = val.(models.DirectMessage)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.DirectMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.DirectMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.DirectMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversation(ctx context.Context, userID int, otherID int) ([]models.DirectMessage, error) {
	args := m.Called(ctx, userID, otherID)
	var msgs []models.DirectMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.DirectMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error) {
	args := m.Called(ctx, messageID, senderID, text)
	var updatedAt time.Time
	if val := args.Get(0); val != nil {
		updatedAt = val.(time.Time)
	}
	return updatedAt, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int, readerID int) (int, error) {
	args := m.Called(ctx, messageID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error {
	args := m.Called(ctx, messageID, userID, reaction)
	return args.Error(0)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	args := m.Called(ctx, msg)
	var created models.GroupMessage
	if val := args.Get(0); val != nil {
		created = val.(models.GroupMessage)
	}
	return created, args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) UpdateText(ctx context.Context, messageID int, senderID int, text string) (time.Time, error) {
	args := m.Called(ctx, messageID, senderID, text)
	var updatedAt time.Time
	if val := args.Get(0); val != nil {
		updatedAt = val.(time.Time)
	}
	return updatedAt, args.Error(1)
}

func (m *GroupMessageRepositoryMock) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) MarkRead(ctx context.Context, messageID int, readerID int) (int, error) {
	args := m.Called(ctx, messageID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) UpsertReaction(ctx context.Context, messageID int, userID int, reaction string) error {
	args := m.Called(ctx, messageID, userID, reaction)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type RouterMock struct {
	mock.Mock
}

func (m *RouterMock) SendToUser(userID int, event models.GatewayEvent) {
	m.Called(userID, event)
}

func (m *RouterMock) BroadcastAll(event models.GatewayEvent) {
	m.Called(event)
}

type IngestorMock struct {
	mock.Mock
}

func (m *IngestorMock) Ingest(ctx context.Context, chatKind string, fileName string, fileData string, mediaType string) (string, string, error) {
	args := m.Called(ctx, chatKind, fileName, fileData, mediaType)
	return args.String(0), args.String(1), args.Error(2)
}

type ObjectStoreMock struct {
	mock.Mock
}

func (m *ObjectStoreMock) Put(ctx context.Context, key string, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
