package models

import "time"

// ContractMembership joins a user to a contract. A nil OptOutOn marks the membership active;
// re-joining clears OptOutOn on the same row.
type ContractMembership struct {
	BaseModel

	UserID     string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_contract" json:"user_id"`
	ContractID string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_contract;index" json:"contract_id"`

	SignedAt *time.Time `json:"signed_at"`
	OptOutOn *time.Time `json:"opt_out_on"`
	ViewedAt *time.Time `json:"viewed_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// Active reports whether the member has not opted out.
func (m ContractMembership) Active() bool {
	return m.OptOutOn == nil
}

// Signed reports whether the member explicitly signed the contract.
func (m ContractMembership) Signed() bool {
	return m.SignedAt != nil
}
