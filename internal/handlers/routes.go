package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes mounts the chat REST surface under /chat.
func RegisterChatRoutes(group *gin.RouterGroup, chats *ChatHandler, groups *GroupHandler, messages *MessageHandler) {
	chat := group.Group("/chat")

	chat.POST("/direct", chats.StartDirectChat)
	chat.GET("/list", chats.ListChats)
	chat.GET("/researchers", chats.ListResearchers)

	chat.POST("/group", groups.CreateGroup)
	chat.PUT("/group/:groupId", groups.UpdateGroup)
	chat.PUT("/group/:groupId/photo", groups.UpdateGroupPhoto)
	chat.POST("/group/:groupId/members", groups.AddMember)
	chat.DELETE("/group/:groupId/members/:memberId", groups.RemoveMember)
	chat.DELETE("/group/:groupId/leave", groups.LeaveGroup)

	chat.POST("/message", messages.SendMessage)
	chat.GET("/messages/:chatId/:chatType", messages.ListMessages)
	chat.DELETE("/message/:messageId", messages.DeleteMessage)
	chat.POST("/upload/:chatId/:chatType", messages.UploadFile)
}
