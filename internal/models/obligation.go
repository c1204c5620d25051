package models

import (
	"time"

	"gorm.io/datatypes"
)

// Repeat is the recurrence rule of an obligation template.
type Repeat string

const (
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
)

// Obligation is the recurring commitment template of a contract. Days holds weekdays
// using time.Weekday numbering (0 = Sunday).
type Obligation struct {
	BaseModel

	ContractID  string                   `gorm:"type:uuid;not null;index" json:"contract_id"`
	UserID      string                   `gorm:"type:uuid;index" json:"user_id"`
	Title       string                   `gorm:"not null" json:"title"`
	Description string                   `gorm:"type:text" json:"description"`
	Emoji       string                   `gorm:"size:16" json:"emoji"`
	Repeat      Repeat                   `gorm:"type:varchar(16);not null" json:"repeat"`
	Days        datatypes.JSONSlice[int] `json:"days"`
	TimesAWeek  *int                     `json:"times_a_week,omitempty"`
}

// OnWeekday reports whether the template lists the weekday.
func (o Obligation) OnWeekday(day time.Weekday) bool {
	for _, d := range o.Days {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// ObligationInstance tracks one occurrence of an obligation for one user.
type ObligationInstance struct {
	BaseModel

	ObligationID string     `gorm:"type:uuid;not null;index:idx_instance_lookup,priority:2" json:"obligation_id"`
	ContractID   string     `gorm:"type:uuid;not null;index" json:"contract_id"`
	UserID       string     `gorm:"type:uuid;not null;index:idx_instance_lookup,priority:1" json:"user_id"`
	DueDate      time.Time  `gorm:"not null;index:idx_instance_lookup,priority:3" json:"due_date"`
	CompletedAt  *time.Time `json:"completed_at"`
	ViewedAt     *time.Time `json:"viewed_at"`

	Obligation *Obligation `gorm:"constraint:OnDelete:CASCADE" json:"obligation,omitempty"`
}

// InstanceKey identifies an instance slot independently of its row identity.
type InstanceKey struct {
	ObligationID string
	UserID       string
	Day          string
}

// KeyIn returns the slot identity used for duplicate detection, taking the calendar
// day of DueDate in loc. Stores hand DueDate back in UTC, so callers pass the
// scheduling location.
func (i ObligationInstance) KeyIn(loc *time.Location) InstanceKey {
	due := i.DueDate
	if loc != nil {
		due = due.In(loc)
	}
	return InstanceKey{
		ObligationID: i.ObligationID,
		UserID:       i.UserID,
		Day:          due.Format(time.DateOnly),
	}
}
