package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-gateway/internal/repositories"
)

// HistoryHandler serves message history for direct conversations and groups.
type HistoryHandler struct {
	messageRepo  repositories.MessageRepository
	groupRepo    repositories.GroupRepository
	groupMsgRepo repositories.GroupMessageRepository
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(messageRepo repositories.MessageRepository, groupRepo repositories.GroupRepository, groupMsgRepo repositories.GroupMessageRepository) *HistoryHandler {
	return &HistoryHandler{
		messageRepo:  messageRepo,
		groupRepo:    groupRepo,
		groupMsgRepo: groupMsgRepo,
	}
}

// GetConversation returns the non-deleted messages exchanged between the
// authenticated user and the addressed user, oldest first.
func (h *HistoryHandler) GetConversation(c *gin.Context) {
	otherID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.messageRepo.ListConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetGroupMessages returns the group's non-deleted messages. Membership
// is verified before any rows are read.
func (h *HistoryHandler) GetGroupMessages(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.groupRepo.IsMember(c.Request.Context(), groupID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	msgs, err := h.groupMsgRepo.ListGroupMessages(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
