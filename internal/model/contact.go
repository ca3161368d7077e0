package model

import (
	"time"
)

// Contact sources
const (
	SourceWhatsApp = "whatsapp"
)

// Contact is a prospective customer identified by phone number.
type Contact struct {
	ID                string     `json:"id" gorm:"primaryKey;type:text"`
	Phone             string     `json:"phone" gorm:"column:phone;uniqueIndex;type:text;not null" validate:"required"`
	Name              string     `json:"name,omitempty" gorm:"type:text"`
	Email             string     `json:"email,omitempty" gorm:"type:text"`
	Intent            string     `json:"intent,omitempty" gorm:"type:text"` // buy, rent or invest
	BudgetMin         *int64     `json:"budget_min,omitempty" gorm:"column:budget_min"`
	BudgetMax         *int64     `json:"budget_max,omitempty" gorm:"column:budget_max"`
	PreferredLocation string     `json:"preferred_location,omitempty" gorm:"column:preferred_location;type:text"`
	PropertyType      string     `json:"property_type,omitempty" gorm:"column:property_type;type:text"`
	Bedrooms          *int       `json:"bedrooms,omitempty"`
	Stage             Stage      `json:"stage" gorm:"type:text;not null;default:new;index"`
	Source            string     `json:"source,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastContactAt     *time.Time `json:"last_contact_at,omitempty" gorm:"column:last_contact_at;index"`
}

// TableName specifies the table name for the Contact model.
func (Contact) TableName() string {
	return "contacts"
}

// Intents accepted from the qualification menu
const (
	IntentBuy    = "buy"
	IntentRent   = "rent"
	IntentInvest = "invest"
)
