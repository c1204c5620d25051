package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.AuthHandler) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/signup", handler.SignUp)
		auth.POST("/login", handler.Login)
		auth.GET("/me", requireAuth, handler.Me)
	}
}
