package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
)

// CampaignStatus moves one way: draft -> active -> completed.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
)

const (
	ScheduleImmediate = "immediate"
	ScheduleScheduled = "scheduled"
)

// AudienceFilter is a conjunctive set of predicates over contacts.
// Zero values mean "no constraint".
type AudienceFilter struct {
	Stage     Stage  `json:"stage,omitempty"`
	Location  string `json:"location,omitempty"`
	BudgetMin *int64 `json:"budget_min,omitempty"`
	BudgetMax *int64 `json:"budget_max,omitempty"`
}

// Validate rejects filters that cannot match a meaningful audience:
// an unknown stage, a negative budget or an inverted budget range.
func (f AudienceFilter) Validate() error {
	if f.Stage != "" {
		if _, err := ParseStage(string(f.Stage)); err != nil {
			return fmt.Errorf("audience filter: %w", err)
		}
	}
	if (f.BudgetMin != nil && *f.BudgetMin < 0) || (f.BudgetMax != nil && *f.BudgetMax < 0) {
		return fmt.Errorf("%w: audience filter budget cannot be negative", apperrors.ErrValidation)
	}
	if f.BudgetMin != nil && f.BudgetMax != nil && *f.BudgetMin > *f.BudgetMax {
		return fmt.Errorf("%w: audience filter budget_min %d exceeds budget_max %d",
			apperrors.ErrValidation, *f.BudgetMin, *f.BudgetMax)
	}
	return nil
}

// Campaign is a bulk outbound messaging job.
type Campaign struct {
	ID              string                             `json:"id" gorm:"primaryKey;type:text"`
	Name            string                             `json:"name" gorm:"type:text;not null"`
	MessageTemplate string                             `json:"message_template" gorm:"column:message_template;type:text;not null"`
	AudienceFilter  datatypes.JSONType[AudienceFilter] `json:"audience_filter" gorm:"column:audience_filter;type:jsonb"`
	ScheduleType    string                             `json:"schedule_type" gorm:"column:schedule_type;type:text;default:immediate"`
	ScheduledAt     *time.Time                         `json:"scheduled_at,omitempty" gorm:"column:scheduled_at"`
	Status          CampaignStatus                     `json:"status" gorm:"type:text;not null;default:draft;index"`
	LaunchedAt      *time.Time                         `json:"launched_at,omitempty" gorm:"column:launched_at"`
	CompletedAt     *time.Time                         `json:"completed_at,omitempty" gorm:"column:completed_at"`
	SentCount       int64                              `json:"sent_count" gorm:"column:sent_count;not null;default:0"`
	DeliveredCount  int64                              `json:"delivered_count" gorm:"column:delivered_count;not null;default:0"`
	ReadCount       int64                              `json:"read_count" gorm:"column:read_count;not null;default:0"`
	FailedCount     int64                              `json:"failed_count" gorm:"column:failed_count;not null;default:0"`
	CreatedAt       time.Time                          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time                          `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Campaign model.
func (Campaign) TableName() string {
	return "campaigns"
}

// Filter returns the decoded audience filter.
func (c *Campaign) Filter() AudienceFilter {
	return c.AudienceFilter.Data()
}

// CampaignMessage links one campaign to one contact's delivery outcome.
type CampaignMessage struct {
	ID                int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CampaignID        string         `json:"campaign_id" gorm:"column:campaign_id;type:text;not null;uniqueIndex:idx_campaign_contact"`
	ContactID         string         `json:"contact_id" gorm:"column:contact_id;type:text;not null;uniqueIndex:idx_campaign_contact"`
	ProviderMessageID string         `json:"provider_message_id,omitempty" gorm:"column:provider_message_id;type:text;index"`
	Status            DeliveryStatus `json:"status" gorm:"column:status;type:text;not null"`
	SentAt            *time.Time     `json:"sent_at,omitempty" gorm:"column:sent_at"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty" gorm:"column:delivered_at"`
	ReadAt            *time.Time     `json:"read_at,omitempty" gorm:"column:read_at"`
	ErrorDetail       string         `json:"error_detail,omitempty" gorm:"column:error_detail;type:text"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Campaign *Campaign `json:"-" gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the CampaignMessage model.
func (CampaignMessage) TableName() string {
	return "campaign_messages"
}

// Succeeded reports whether the recipient already received the campaign.
func (m *CampaignMessage) Succeeded() bool {
	switch m.Status {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// CampaignEvent is an append-only analytics row. The pair
// (provider_message_id, event_type) is unique so replayed callbacks insert nothing.
type CampaignEvent struct {
	ID                int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CampaignID        string         `json:"campaign_id" gorm:"column:campaign_id;type:text;not null;index"`
	ContactID         string         `json:"contact_id" gorm:"column:contact_id;type:text"`
	ProviderMessageID string         `json:"provider_message_id" gorm:"column:provider_message_id;type:text;not null;uniqueIndex:idx_campaign_event_once"`
	EventType         DeliveryStatus `json:"event_type" gorm:"column:event_type;type:text;not null;uniqueIndex:idx_campaign_event_once"`
	OccurredAt        time.Time      `json:"occurred_at" gorm:"column:occurred_at"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`

	Campaign *Campaign `json:"-" gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the CampaignEvent model.
func (CampaignEvent) TableName() string {
	return "campaign_events"
}

// CounterColumn returns the campaigns column incremented by an event of this type.
func (s DeliveryStatus) CounterColumn() string {
	switch s {
	case StatusSent:
		return "sent_count"
	case StatusDelivered:
		return "delivered_count"
	case StatusRead:
		return "read_count"
	case StatusFailed:
		return "failed_count"
	}
	return ""
}
