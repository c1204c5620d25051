package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/handlers"
)

// The webhook authenticates with a shared secret header, not a session token.
func registerBillingRoutes(engine *gin.Engine, handler *handlers.BillingHandler) {
	engine.POST("/api/billing/webhook", handler.Webhook)
}
