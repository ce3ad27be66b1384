package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-gateway/internal/mocks"
	"messaging-gateway/internal/models"
)

func setupHistoryRouter(handler *HistoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations/:user_id/messages", handler.GetConversation)
	r.GET("/groups/:group_id/messages", handler.GetGroupMessages)
	return r
}

func TestGetConversationSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewHistoryHandler(messageRepo, new(mocks.GroupRepositoryMock), new(mocks.GroupMessageRepositoryMock))
	router := setupHistoryRouter(handler)

	messageRepo.On("ListConversation", mock.Anything, 1, 2).Return([]models.DirectMessage{{ID: 7, SenderID: 1, ReceiverID: 2, Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp["messages"], 1)
	messageRepo.AssertExpectations(t)
}

func TestGetConversationInvalidID(t *testing.T) {
	handler := NewHistoryHandler(new(mocks.MessageRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.GroupMessageRepositoryMock))
	router := setupHistoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationRepoError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewHistoryHandler(messageRepo, new(mocks.GroupRepositoryMock), new(mocks.GroupMessageRepositoryMock))
	router := setupHistoryRouter(handler)

	messageRepo.On("ListConversation", mock.Anything, 1, 2).Return(([]models.DirectMessage)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestGetGroupMessagesSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	groupMsgRepo := new(mocks.GroupMessageRepositoryMock)
	handler := NewHistoryHandler(new(mocks.MessageRepositoryMock), groupRepo, groupMsgRepo)
	router := setupHistoryRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 4, 1).Return(true, nil).Once()
	groupMsgRepo.On("ListGroupMessages", mock.Anything, 4).Return([]models.GroupMessage{{ID: 11, GroupID: 4, SenderID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/4/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
	groupMsgRepo.AssertExpectations(t)
}

func TestGetGroupMessagesNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	groupMsgRepo := new(mocks.GroupMessageRepositoryMock)
	handler := NewHistoryHandler(new(mocks.MessageRepositoryMock), groupRepo, groupMsgRepo)
	router := setupHistoryRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 4, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/4/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupMsgRepo.AssertNotCalled(t, "ListGroupMessages", mock.Anything, mock.Anything)
	groupRepo.AssertExpectations(t)
}
