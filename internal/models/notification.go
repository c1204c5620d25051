package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is the in-app record of a message sent to a user.
type Notification struct {
	BaseModel

	UserID     string         `gorm:"type:uuid;index" json:"user_id"`
	ContractID *string        `gorm:"type:uuid;index" json:"contract_id,omitempty"`
	Type       string         `gorm:"type:varchar(64);not null" json:"type"`
	Title      string         `gorm:"type:varchar(255);not null" json:"title"`
	Body       string         `gorm:"type:text" json:"body"`
	Image      string         `gorm:"type:text" json:"image,omitempty"`
	Metadata   datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
