package models

import "strings"

// PaidTier is the billing tier attached to a user account.
type PaidTier string

const (
	TierFree    PaidTier = "free"
	TierPremium PaidTier = "premium"
)

// ParsePaidTier normalises stored or user supplied tier names, defaulting to free.
func ParsePaidTier(value string) PaidTier {
	switch PaidTier(strings.ToLower(strings.TrimSpace(value))) {
	case TierPremium:
		return TierPremium
	default:
		return TierFree
	}
}

// IsPremium reports whether the tier unlocks premium limits.
func (t PaidTier) IsPremium() bool {
	return t == TierPremium
}

// User is an account that can create, join and sign contracts.
type User struct {
	BaseModel

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	Avatar       string `json:"avatar,omitempty"`

	Tier PaidTier `gorm:"type:varchar(16);not null;default:'free'" json:"tier"`

	ReferralCode string  `gorm:"uniqueIndex;size:16" json:"referral_code"`
	ReferredByID *string `gorm:"type:uuid;index" json:"referred_by_id,omitempty"`

	WebPushToken    string `json:"-"`
	MobilePushToken string `json:"-"`
}
