package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/middleware"
	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requireActor returns the authenticated caller. It writes a 401 and returns false when the
// auth middleware did not run.
func requireActor(c *gin.Context) (services.Actor, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return services.Actor{}, false
	}
	actor := services.Actor{UserID: userID, Tier: models.TierFree}
	if tier, ok := c.Get(middleware.CtxTierKey); ok {
		if value, ok := tier.(models.PaidTier); ok {
			actor.Tier = value
		}
	}
	return actor, true
}
