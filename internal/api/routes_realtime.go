package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/handlers"
)

func registerRealtimeRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, handler *handlers.RealtimeHandler) {
	engine.GET("/ws", requireAuth, handler.Stream)
}
