package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/TeaToe17/jalev1/internal/handlers"
	"github.com/TeaToe17/jalev1/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler, jwtSecret string) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(jwtSecret))
	{
		chat.GET("/messages", h.GetMessages) // ?userId=...
		chat.GET("/previews", h.GetPreviews)
		chat.POST("/read/:peerId", h.MarkConversationRead)
		chat.POST("/notify", h.SendNotification)
	}
}
