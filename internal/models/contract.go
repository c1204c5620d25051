package models

import "time"

// ContractType distinguishes plain contracts from challenge-style contracts.
type ContractType string

const (
	ContractTypeContract  ContractType = "contract"
	ContractTypeChallenge ContractType = "challenge"
)

// Valid reports whether the type is one of the known variants.
func (t ContractType) Valid() bool {
	return t == ContractTypeContract || t == ContractTypeChallenge
}

// Contract is a shared commitment between a creator and invited partners.
type Contract struct {
	BaseModel

	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Type        ContractType `gorm:"type:varchar(16);not null;default:'contract'" json:"type"`
	CreatorID   string       `gorm:"type:uuid;not null;index" json:"creator_id"`
	DueDate     *time.Time   `json:"due_date,omitempty"`

	Obligations []Obligation         `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"obligations,omitempty"`
	Memberships []ContractMembership `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
}
