package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/TeaToe17/jalev1/internal/handlers"
	"github.com/TeaToe17/jalev1/internal/middleware"
)

func RegisterPushRoutes(r gin.IRouter, h *handlers.ChatHandler, jwtSecret string) {
	push := r.Group("/push")
	push.Use(middleware.AuthMiddleware(jwtSecret))
	{
		push.POST("/targets", h.RegisterPushTarget)
		push.DELETE("/targets", h.DeletePushTargets)
	}
}
