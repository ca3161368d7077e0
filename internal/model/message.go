package model

import (
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message types as reported by the provider
const (
	MessageTypeText        = "text"
	MessageTypeImage       = "image"
	MessageTypeDocument    = "document"
	MessageTypeInteractive = "interactive"
	MessageTypeButton      = "button"
)

// Message is one inbound or outbound WhatsApp message.
type Message struct {
	ID                int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ContactID         string         `json:"contact_id" gorm:"column:contact_id;type:text;not null;index"`
	ProviderMessageID string         `json:"provider_message_id" gorm:"column:provider_message_id;type:text;uniqueIndex"`
	Direction         string         `json:"direction" gorm:"column:direction;type:text;not null"`
	MessageType       string         `json:"message_type" gorm:"column:message_type;type:text"`
	Content           string         `json:"content" gorm:"column:content;type:text"`
	Status            DeliveryStatus `json:"status,omitempty" gorm:"column:status;type:text"`
	StatusAt          *time.Time     `json:"status_at,omitempty" gorm:"column:status_at"`
	ProviderTimestamp *time.Time     `json:"provider_timestamp,omitempty" gorm:"column:provider_timestamp"`
	CreatedAt         time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Contact *Contact `json:"-" gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}
