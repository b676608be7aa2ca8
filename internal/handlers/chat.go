package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-chat/internal/middleware"
	"research-chat/internal/services"
)

// ChatHandler serves direct chats, the chat list and the researcher directory.
type ChatHandler struct {
	chats *services.ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// StartDirectChat creates or returns the direct chat with the recipient.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	var req struct {
		RecipientID string `json:"recipientId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "recipientId is required")
		return
	}

	chat, err := h.chats.StartDirectChat(c.Request.Context(), c.GetString(middleware.UserIDKey), req.RecipientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chat": chat})
}

// ListChats returns the caller's direct and group chats.
func (h *ChatHandler) ListChats(c *gin.Context) {
	list, err := h.chats.ListChats(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"directChats": list.DirectChats,
		"groupChats":  list.GroupChats,
	})
}

// ListResearchers returns the other researchers the caller can chat with.
func (h *ChatHandler) ListResearchers(c *gin.Context) {
	users, err := h.chats.ListResearchers(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "researchers": users})
}
