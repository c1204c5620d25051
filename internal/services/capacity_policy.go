package services

import "github.com/pinkypartner/pinkypartner/internal/models"

const (
	// DefaultFreeMemberLimit is how many partners a free creator may add besides themselves.
	DefaultFreeMemberLimit = 1
	// DefaultPremiumMemberLimit is the hard cap on partners for premium creators.
	DefaultPremiumMemberLimit = 999
)

// CapacityPolicy decides whether another member fits into a contract.
// Member counts never include the contract creator.
type CapacityPolicy struct {
	FreeLimit    int
	PremiumLimit int
}

// DefaultCapacityPolicy returns the stock free/premium limits.
func DefaultCapacityPolicy() CapacityPolicy {
	return CapacityPolicy{
		FreeLimit:    DefaultFreeMemberLimit,
		PremiumLimit: DefaultPremiumMemberLimit,
	}
}

// LimitFor returns the number of non-creator members allowed for the creator tier.
func (p CapacityPolicy) LimitFor(creatorTier models.PaidTier) int {
	if creatorTier.IsPremium() {
		if p.PremiumLimit > 0 {
			return p.PremiumLimit
		}
		return DefaultPremiumMemberLimit
	}
	if p.FreeLimit > 0 {
		return p.FreeLimit
	}
	return DefaultFreeMemberLimit
}

// CanAddUser reports whether a contract with activeMembers non-creator members may take one more.
// The contract type is part of the signature so per-type limits can be introduced; both types
// currently share the tier limits.
func (p CapacityPolicy) CanAddUser(_ models.ContractType, activeMembers int64, creatorTier models.PaidTier) bool {
	if activeMembers < 0 {
		activeMembers = 0
	}
	return activeMembers < int64(p.LimitFor(creatorTier))
}

// RejectionError picks the error surfaced when CanAddUser said no.
func (p CapacityPolicy) RejectionError(creatorTier models.PaidTier) error {
	if creatorTier.IsPremium() {
		return ErrContractFull
	}
	return ErrUserNotPremium
}
