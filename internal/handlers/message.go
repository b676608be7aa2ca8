package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-chat/internal/middleware"
	"research-chat/internal/models"
	"research-chat/internal/services"
)

// MessageHandler serves sending, listing, deleting and file messages.
type MessageHandler struct {
	messages       *services.MessagingService
	audit          Auditor
	maxUploadBytes int64
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessagingService, auditor Auditor, maxUploadBytes int64) *MessageHandler {
	return &MessageHandler{messages: messages, audit: auditor, maxUploadBytes: maxUploadBytes}
}

func chatRefFrom(chatType, chatID string) (models.ChatRef, bool) {
	t, err := models.ParseChatType(chatType)
	if err != nil || chatID == "" {
		return models.ChatRef{}, false
	}
	return models.ChatRef{Type: t, ID: chatID}, true
}

// SendMessage persists a text message and fans it out.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		Content  string `json:"content"`
		ChatID   string `json:"chatId" binding:"required"`
		ChatType string `json:"chatType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "chatId and chatType are required")
		return
	}
	ref, ok := chatRefFrom(req.ChatType, req.ChatID)
	if !ok {
		badRequest(c, "invalid chat type")
		return
	}

	msg, err := h.messages.SendMessage(c.Request.Context(), c.GetString(middleware.UserIDKey), ref, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

// ListMessages returns the conversation in ascending creation order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	ref, ok := chatRefFrom(c.Param("chatType"), c.Param("chatId"))
	if !ok {
		badRequest(c, "invalid chat type")
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), c.GetString(middleware.UserIDKey), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// DeleteMessage soft-deletes one of the caller's messages.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("messageId")
	msg, err := h.messages.DeleteMessage(c.Request.Context(), c.GetString(middleware.UserIDKey), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "message deleted", "message:"+messageID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// UploadFile stores the multipart field "file" and posts it as a message.
func (h *MessageHandler) UploadFile(c *gin.Context) {
	ref, ok := chatRefFrom(c.Param("chatType"), c.Param("chatId"))
	if !ok {
		badRequest(c, "invalid chat type")
		return
	}
	upload, closer, err := formUpload(c, "file", h.maxUploadBytes)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer closer.Close()

	msg, err := h.messages.UploadFile(c.Request.Context(), c.GetString(middleware.UserIDKey), ref, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "file shared", string(ref.Type)+":"+ref.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}
