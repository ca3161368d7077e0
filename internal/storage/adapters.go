package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

func (a *ContactRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	return a.postgres.FindContactByPhone(ctx, phone)
}

// FindOrCreate resolves the contact owning candidate.Phone
func (a *ContactRepoAdapter) FindOrCreate(ctx context.Context, candidate model.Contact) (*model.Contact, bool, error) {
	return a.postgres.FindOrCreateContact(ctx, candidate)
}

func (a *ContactRepoAdapter) Touch(ctx context.Context, contactID string, at time.Time) error {
	return a.postgres.TouchContact(ctx, contactID, at)
}

func (a *ContactRepoAdapter) UpdateIntent(ctx context.Context, contactID, intent string) error {
	return a.postgres.UpdateContactIntent(ctx, contactID, intent)
}

func (a *ContactRepoAdapter) TransitionStage(ctx context.Context, contactID string, stage model.Stage, notes, actor string) (*model.StageChange, error) {
	return a.postgres.TransitionStage(ctx, contactID, stage, notes, actor)
}

func (a *ContactRepoAdapter) FindAudience(ctx context.Context, filter model.AudienceFilter) ([]model.Contact, error) {
	return a.postgres.FindAudience(ctx, filter)
}

// MessageRepoAdapter adapts the PostgresRepo to the MessageRepo interface
type MessageRepoAdapter struct {
	postgres *PostgresRepo
}

// NewMessageRepoAdapter creates a new message repository adapter
func NewMessageRepoAdapter(postgres *PostgresRepo) MessageRepo {
	return &MessageRepoAdapter{postgres: postgres}
}

// Save saves a message
func (a *MessageRepoAdapter) Save(ctx context.Context, message *model.Message) error {
	return a.postgres.SaveMessage(ctx, message)
}

func (a *MessageRepoAdapter) FindByProviderID(ctx context.Context, providerID string) (*model.Message, error) {
	return a.postgres.FindMessageByProviderID(ctx, providerID)
}

func (a *MessageRepoAdapter) ApplyStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time) (bool, error) {
	return a.postgres.ApplyMessageStatus(ctx, providerID, status, at)
}

// CampaignRepoAdapter adapts the PostgresRepo to the CampaignRepo interface
type CampaignRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCampaignRepoAdapter creates a new campaign repository adapter
func NewCampaignRepoAdapter(postgres *PostgresRepo) CampaignRepo {
	return &CampaignRepoAdapter{postgres: postgres}
}

func (a *CampaignRepoAdapter) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	return a.postgres.FindCampaignByID(ctx, id)
}

func (a *CampaignRepoAdapter) MarkActive(ctx context.Context, id string, at time.Time) (bool, error) {
	return a.postgres.MarkCampaignActive(ctx, id, at)
}

func (a *CampaignRepoAdapter) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	return a.postgres.MarkCampaignCompleted(ctx, id, at)
}

func (a *CampaignRepoAdapter) ClaimDue(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	return a.postgres.ClaimDueCampaigns(ctx, now)
}

func (a *CampaignRepoAdapter) FindMessage(ctx context.Context, campaignID, contactID string) (*model.CampaignMessage, error) {
	return a.postgres.FindCampaignMessage(ctx, campaignID, contactID)
}

func (a *CampaignRepoAdapter) FindMessageByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error) {
	return a.postgres.FindCampaignMessageByProviderID(ctx, providerID)
}

func (a *CampaignRepoAdapter) UpsertMessage(ctx context.Context, cm *model.CampaignMessage) error {
	return a.postgres.UpsertCampaignMessage(ctx, cm)
}

func (a *CampaignRepoAdapter) ApplyMessageStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time, errorDetail string) (bool, error) {
	return a.postgres.ApplyCampaignMessageStatus(ctx, providerID, status, at, errorDetail)
}

// RecordEvent appends a campaign event and bumps its counter once
func (a *CampaignRepoAdapter) RecordEvent(ctx context.Context, event *model.CampaignEvent) (bool, error) {
	return a.postgres.RecordCampaignEvent(ctx, event)
}

// ActivityRepoAdapter adapts the PostgresRepo to the ActivityRepo interface
type ActivityRepoAdapter struct {
	postgres *PostgresRepo
}

// NewActivityRepoAdapter creates a new activity repository adapter
func NewActivityRepoAdapter(postgres *PostgresRepo) ActivityRepo {
	return &ActivityRepoAdapter{postgres: postgres}
}

func (a *ActivityRepoAdapter) ListByContact(ctx context.Context, contactID string, limit int) ([]model.Activity, error) {
	return a.postgres.ListActivities(ctx, contactID, limit)
}

// PropertyRepoAdapter adapts the PostgresRepo to the PropertyRepo interface
type PropertyRepoAdapter struct {
	postgres *PostgresRepo
}

// NewPropertyRepoAdapter creates a new property repository adapter
func NewPropertyRepoAdapter(postgres *PostgresRepo) PropertyRepo {
	return &PropertyRepoAdapter{postgres: postgres}
}

func (a *PropertyRepoAdapter) FindByID(ctx context.Context, id string) (*model.Property, error) {
	return a.postgres.FindPropertyByID(ctx, id)
}
