package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/pinkypartner/pinkypartner/internal/models"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
)

// Subscription lifecycle events understood by the billing webhook.
const (
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
)

// BillingEvent is the part of a payment provider webhook the service acts on.
// UserID is the account id the checkout was started with.
type BillingEvent struct {
	Type   string
	UserID string
}

// BillingService maps subscription events onto user tiers.
type BillingService struct {
	users  *UserService
	secret string
}

// NewBillingService constructs a BillingService. An empty secret rejects every webhook.
func NewBillingService(users *UserService, webhookSecret string) (*BillingService, error) {
	if users == nil {
		return nil, errors.New("billing service: user service is required")
	}
	return &BillingService{users: users, secret: webhookSecret}, nil
}

// VerifySecret compares the shared webhook secret in constant time.
func (s *BillingService) VerifySecret(provided string) bool {
	if s.secret == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.secret), []byte(provided)) == 1
}

// Apply updates the user's tier for a subscription event. Unknown events are ignored and
// reported as handled=false.
func (s *BillingService) Apply(ctx context.Context, event BillingEvent) (bool, error) {
	tier, ok := tierForEvent(event.Type)
	if !ok {
		return false, nil
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return false, apperrors.NewBadRequest("billing event without user id")
	}
	if err := s.users.SetTier(ensureContext(ctx), userID, tier); err != nil {
		return false, fmt.Errorf("billing service: %w", err)
	}
	return true, nil
}

func tierForEvent(eventType string) (models.PaidTier, bool) {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case EventSubscriptionActivated:
		return models.TierPremium, true
	case EventSubscriptionCancelled, EventSubscriptionExpired, EventSubscriptionSuspended:
		return models.TierFree, true
	default:
		return "", false
	}
}
