package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// UserHandler exposes self-service account settings.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type pushTokensRequest struct {
	Web    *string `json:"web" validate:"omitempty,max=4096"`
	Mobile *string `json:"mobile" validate:"omitempty,max=4096"`
}

// PUT /api/users/me/push-tokens
func (h *UserHandler) UpdatePushTokens(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req pushTokensRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.UpdatePushTokens(requestContext(c), actor.UserID, services.PushTokensInput{
		Web:    req.Web,
		Mobile: req.Mobile,
	}); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
