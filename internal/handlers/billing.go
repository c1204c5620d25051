package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// WebhookSecretHeader carries the shared secret configured at the payment provider.
const WebhookSecretHeader = "X-Webhook-Secret"

// BillingHandler receives subscription webhooks.
type BillingHandler struct {
	billing *services.BillingService
}

// NewBillingHandler constructs a billing handler.
func NewBillingHandler(billing *services.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

type webhookRequest struct {
	EventType string `json:"event_type" validate:"required"`
	Resource  struct {
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

// POST /api/billing/webhook
func (h *BillingHandler) Webhook(c *gin.Context) {
	if !h.billing.VerifySecret(c.GetHeader(WebhookSecretHeader)) {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req webhookRequest
	if !bindAndValidate(c, &req) {
		return
	}

	handled, err := h.billing.Apply(requestContext(c), services.BillingEvent{
		Type:   req.EventType,
		UserID: req.Resource.CustomID,
	})
	if err != nil {
		logger.WithModule("billing").Warn("webhook rejected",
			zap.String("event_type", req.EventType),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"handled": handled})
}
