package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

// ContactRepo defines contact storage operations
type ContactRepo interface {
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	FindOrCreate(ctx context.Context, candidate model.Contact) (*model.Contact, bool, error)
	Touch(ctx context.Context, contactID string, at time.Time) error
	UpdateIntent(ctx context.Context, contactID, intent string) error
	TransitionStage(ctx context.Context, contactID string, stage model.Stage, notes, actor string) (*model.StageChange, error)
	FindAudience(ctx context.Context, filter model.AudienceFilter) ([]model.Contact, error)
}

// MessageRepo defines message storage operations
type MessageRepo interface {
	Save(ctx context.Context, message *model.Message) error
	FindByProviderID(ctx context.Context, providerID string) (*model.Message, error)
	ApplyStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time) (bool, error)
}

// CampaignRepo defines campaign storage operations
type CampaignRepo interface {
	FindByID(ctx context.Context, id string) (*model.Campaign, error)
	MarkActive(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	ClaimDue(ctx context.Context, now time.Time) ([]model.Campaign, error)

	FindMessage(ctx context.Context, campaignID, contactID string) (*model.CampaignMessage, error)
	FindMessageByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error)
	UpsertMessage(ctx context.Context, cm *model.CampaignMessage) error
	ApplyMessageStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time, errorDetail string) (bool, error)

	RecordEvent(ctx context.Context, event *model.CampaignEvent) (bool, error)
}

// ActivityRepo defines activity storage operations
type ActivityRepo interface {
	ListByContact(ctx context.Context, contactID string, limit int) ([]model.Activity, error)
}

// PropertyRepo defines property storage operations
type PropertyRepo interface {
	FindByID(ctx context.Context, id string) (*model.Property, error)
}

// HealthChecker reports database reachability
type HealthChecker interface {
	Ping(ctx context.Context) error
}
