package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

// Keys under which referral hints are kept in the request-scoped store.
const (
	ReferralCodeKey = "referralCode"
	ContractIDKey   = "contractId"
)

// ReferralContext is the invite state captured before the user authenticated.
type ReferralContext struct {
	ReferralCode string `json:"referral_code,omitempty"`
	ContractID   string `json:"contract_id,omitempty"`
}

// Empty reports whether no hint is present.
func (r ReferralContext) Empty() bool {
	return r.ReferralCode == "" && r.ContractID == ""
}

// ReferralStore is short-lived per-client storage, typically cookies.
type ReferralStore interface {
	Get(key string) string
	Clear(key string)
}

// ReferralService threads referral and invite hints through sign-in and sign-up.
type ReferralService struct {
	users      *UserService
	membership *MembershipService
	log        *zap.Logger
}

// NewReferralService constructs a ReferralService.
func NewReferralService(users *UserService, membership *MembershipService) (*ReferralService, error) {
	if users == nil || membership == nil {
		return nil, errors.New("referral service: users and membership services are required")
	}
	return &ReferralService{
		users:      users,
		membership: membership,
		log:        logger.WithModule("referral"),
	}, nil
}

// Resolve reads the hints without consuming them.
func (s *ReferralService) Resolve(store ReferralStore) ReferralContext {
	if store == nil {
		return ReferralContext{}
	}
	return ReferralContext{
		ReferralCode: strings.ToUpper(strings.TrimSpace(store.Get(ReferralCodeKey))),
		ContractID:   strings.TrimSpace(store.Get(ContractIDKey)),
	}
}

// Consume resolves the hints, clears them so they are not replayed, records the referrer for
// new accounts and joins the invited contract. Failures never abort the sign-in.
func (s *ReferralService) Consume(ctx context.Context, actor Actor, store ReferralStore, newUser bool) ReferralContext {
	ctx = ensureContext(ctx)

	hints := s.Resolve(store)
	if hints.Empty() {
		return hints
	}
	store.Clear(ReferralCodeKey)
	store.Clear(ContractIDKey)

	if newUser && hints.ReferralCode != "" {
		s.recordReferrer(ctx, actor.UserID, hints.ReferralCode)
	}

	if hints.ContractID != "" {
		if _, err := s.membership.Join(ctx, actor, hints.ContractID); err != nil {
			s.log.Warn("invite join skipped",
				zap.String("user_id", actor.UserID),
				zap.String("contract_id", hints.ContractID),
				zap.Error(err),
			)
		}
	}
	return hints
}

func (s *ReferralService) recordReferrer(ctx context.Context, userID, code string) {
	referrer, err := s.users.FindByReferralCode(ctx, code)
	if err != nil {
		s.log.Info("unknown referral code", zap.String("code", code), zap.Error(err))
		return
	}
	if referrer.ID == userID {
		return
	}
	if err := s.users.SetReferrer(ctx, userID, referrer.ID); err != nil {
		s.log.Warn("record referrer failed", zap.String("user_id", userID), zap.Error(err))
	}
}
