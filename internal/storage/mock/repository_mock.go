package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *ContactRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindOrCreate mocks the FindOrCreate method
func (m *ContactRepoMock) FindOrCreate(ctx context.Context, candidate model.Contact) (*model.Contact, bool, error) {
	args := m.Called(ctx, candidate)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Contact), args.Bool(1), args.Error(2)
}

// Touch mocks the Touch method
func (m *ContactRepoMock) Touch(ctx context.Context, contactID string, at time.Time) error {
	args := m.Called(ctx, contactID, at)
	return args.Error(0)
}

// UpdateIntent mocks the UpdateIntent method
func (m *ContactRepoMock) UpdateIntent(ctx context.Context, contactID, intent string) error {
	args := m.Called(ctx, contactID, intent)
	return args.Error(0)
}

// TransitionStage mocks the TransitionStage method
func (m *ContactRepoMock) TransitionStage(ctx context.Context, contactID string, stage model.Stage, notes, actor string) (*model.StageChange, error) {
	args := m.Called(ctx, contactID, stage, notes, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StageChange), args.Error(1)
}

// FindAudience mocks the FindAudience method
func (m *ContactRepoMock) FindAudience(ctx context.Context, filter model.AudienceFilter) ([]model.Contact, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *MessageRepoMock) Save(ctx context.Context, message *model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// FindByProviderID mocks the FindByProviderID method
func (m *MessageRepoMock) FindByProviderID(ctx context.Context, providerID string) (*model.Message, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// ApplyStatus mocks the ApplyStatus method
func (m *MessageRepoMock) ApplyStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, providerID, status, at)
	return args.Bool(0), args.Error(1)
}

// --- CampaignRepo Mock ---

// CampaignRepoMock mocks the CampaignRepo interface
type CampaignRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *CampaignRepoMock) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

// MarkActive mocks the MarkActive method
func (m *CampaignRepoMock) MarkActive(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

// MarkCompleted mocks the MarkCompleted method
func (m *CampaignRepoMock) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

// ClaimDue mocks the ClaimDue method
func (m *CampaignRepoMock) ClaimDue(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Campaign), args.Error(1)
}

// FindMessage mocks the FindMessage method
func (m *CampaignRepoMock) FindMessage(ctx context.Context, campaignID, contactID string) (*model.CampaignMessage, error) {
	args := m.Called(ctx, campaignID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CampaignMessage), args.Error(1)
}

// FindMessageByProviderID mocks the FindMessageByProviderID method
func (m *CampaignRepoMock) FindMessageByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CampaignMessage), args.Error(1)
}

// UpsertMessage mocks the UpsertMessage method
func (m *CampaignRepoMock) UpsertMessage(ctx context.Context, cm *model.CampaignMessage) error {
	args := m.Called(ctx, cm)
	return args.Error(0)
}

// ApplyMessageStatus mocks the ApplyMessageStatus method
func (m *CampaignRepoMock) ApplyMessageStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time, errorDetail string) (bool, error) {
	args := m.Called(ctx, providerID, status, at, errorDetail)
	return args.Bool(0), args.Error(1)
}

// RecordEvent mocks the RecordEvent method
func (m *CampaignRepoMock) RecordEvent(ctx context.Context, event *model.CampaignEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

// --- ActivityRepo Mock ---

// ActivityRepoMock mocks the ActivityRepo interface
type ActivityRepoMock struct {
	mock.Mock
}

// ListByContact mocks the ListByContact method
func (m *ActivityRepoMock) ListByContact(ctx context.Context, contactID string, limit int) ([]model.Activity, error) {
	args := m.Called(ctx, contactID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Activity), args.Error(1)
}

// --- PropertyRepo Mock ---

// PropertyRepoMock mocks the PropertyRepo interface
type PropertyRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *PropertyRepoMock) FindByID(ctx context.Context, id string) (*model.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

// --- HealthChecker Mock ---

// HealthCheckerMock mocks the HealthChecker interface
type HealthCheckerMock struct {
	mock.Mock
}

// Ping mocks the Ping method
func (m *HealthCheckerMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
