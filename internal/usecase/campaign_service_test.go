package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
)

type campaignRecorder struct {
	mu      sync.Mutex
	records []model.CampaignMessage
	events  []model.CampaignEvent
}

func (r *campaignRecorder) expect(f *fixture) {
	f.campaigns.On("UpsertMessage", mock.Anything, mock.AnythingOfType("*model.CampaignMessage")).
		Run(func(args mock.Arguments) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.records = append(r.records, *args.Get(1).(*model.CampaignMessage))
		}).Return(nil)
	f.campaigns.On("RecordEvent", mock.Anything, mock.AnythingOfType("*model.CampaignEvent")).
		Run(func(args mock.Arguments) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, *args.Get(1).(*model.CampaignEvent))
		}).Return(true, nil)
}

func newCampaignService(f *fixture, limiter Limiter) *CampaignService {
	return NewCampaignService(f.campaigns, f.contacts, f.outbox, limiter, NewPersonalizer("₦"), f.publisher)
}

func audienceOf(n int) []model.Contact {
	out := make([]model.Contact, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, *model.NewContact(&model.Contact{Stage: model.StageQualified}))
	}
	return out
}

func TestCampaignService_LaunchToleratesPartialFailure(t *testing.T) {
	f := newFixture(t)
	limiter := &countingLimiter{}
	svc := newCampaignService(f, limiter)
	campaign := model.NewCampaign(&model.Campaign{MessageTemplate: "Hi {first_name}"})
	audience := audienceOf(3)
	gwErr := &whatsapp.GatewayError{Operation: "send_text", StatusCode: 400, Code: 131026, Message: "Message undeliverable"}
	rec := &campaignRecorder{}

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, campaign.Filter()).Return(audience, nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.AnythingOfType("time.Time")).Return(true, nil).Once()
	f.campaigns.On("FindMessage", mock.Anything, campaign.ID, mock.Anything).Return(nil, apperrors.ErrNotFound).Times(3)
	f.sender.On("SendText", mock.Anything, audience[0].Phone, mock.Anything).Return("wamid.a", nil).Once()
	f.sender.On("SendText", mock.Anything, audience[1].Phone, mock.Anything).Return("", gwErr).Once()
	f.sender.On("SendText", mock.Anything, audience[2].Phone, mock.Anything).Return("wamid.c", nil).Once()
	f.allowOutboundRecording()
	rec.expect(f)
	f.campaigns.On("MarkCompleted", mock.Anything, campaign.ID, mock.AnythingOfType("time.Time")).Return(true, nil).Once()

	result, err := svc.Launch(f.ctx, campaign.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRecipients)
	assert.Equal(t, 2, result.Results.Sent)
	assert.Equal(t, 1, result.Results.Failed)
	assert.Equal(t, 0, result.Results.Skipped)
	assert.Equal(t, model.CampaignCompleted, result.Status)
	require.Len(t, result.Results.Errors, 1)
	assert.Equal(t, audience[1].ID, result.Results.Errors[0].ContactID)
	assert.Contains(t, result.Results.Errors[0].Error, "undeliverable")
	assert.Equal(t, 3, limiter.calls)

	require.Len(t, rec.records, 3)
	assert.Equal(t, model.StatusSent, rec.records[0].Status)
	assert.Equal(t, "wamid.a", rec.records[0].ProviderMessageID)
	assert.NotNil(t, rec.records[0].SentAt)
	assert.Equal(t, model.StatusFailed, rec.records[1].Status)
	assert.Contains(t, rec.records[1].ErrorDetail, "undeliverable")
	assert.Equal(t, model.StatusSent, rec.records[2].Status)

	require.Len(t, rec.events, 3)
	assert.Equal(t, model.StatusFailed, rec.events[1].EventType)
	assert.Equal(t, "local:"+campaign.ID+":"+audience[1].ID, rec.events[1].ProviderMessageID)
	assert.Equal(t, "wamid.c", rec.events[2].ProviderMessageID)

	assert.Equal(t, []model.Topic{model.TopicCampaign, model.TopicCampaign}, f.publisher.topics())
}

func TestCampaignService_LaunchPersonalizesEachRecipient(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{})
	campaign := model.NewCampaign(&model.Campaign{MessageTemplate: "Hi {name}, budget {budget}"})
	amara := *model.NewContact(&model.Contact{Name: "Amara", BudgetMin: int64Ptr(20000000)})

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, mock.Anything).Return([]model.Contact{amara}, nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.Anything).Return(true, nil).Once()
	f.campaigns.On("FindMessage", mock.Anything, campaign.ID, amara.ID).Return(nil, apperrors.ErrNotFound).Once()
	f.sender.On("SendText", mock.Anything, amara.Phone, "Hi Amara, budget ₦20,000,000").Return("wamid.p", nil).Once()
	f.allowOutboundRecording()
	(&campaignRecorder{}).expect(f)
	f.campaigns.On("MarkCompleted", mock.Anything, campaign.ID, mock.Anything).Return(true, nil).Once()

	result, err := svc.Launch(f.ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Results.Sent)
}

func TestCampaignService_RelaunchSkipsReachedRecipients(t *testing.T) {
	f := newFixture(t)
	limiter := &countingLimiter{}
	svc := newCampaignService(f, limiter)
	campaign := model.NewCampaign(&model.Campaign{Status: model.CampaignActive})
	audience := audienceOf(2)

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, mock.Anything).Return(audience, nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.Anything).Return(true, nil).Once()
	f.campaigns.On("FindMessage", mock.Anything, campaign.ID, audience[0].ID).
		Return(model.NewCampaignMessage(&model.CampaignMessage{CampaignID: campaign.ID, ContactID: audience[0].ID, Status: model.StatusDelivered}), nil).Once()
	f.campaigns.On("FindMessage", mock.Anything, campaign.ID, audience[1].ID).
		Return(model.NewCampaignMessage(&model.CampaignMessage{CampaignID: campaign.ID, ContactID: audience[1].ID, Status: model.StatusFailed}), nil).Once()
	f.sender.On("SendText", mock.Anything, audience[1].Phone, mock.Anything).Return("wamid.retry", nil).Once()
	f.allowOutboundRecording()
	(&campaignRecorder{}).expect(f)
	f.campaigns.On("MarkCompleted", mock.Anything, campaign.ID, mock.Anything).Return(true, nil).Once()

	result, err := svc.Launch(f.ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Results.Skipped)
	assert.Equal(t, 1, result.Results.Sent)
	assert.Equal(t, 1, limiter.calls)
	f.sender.AssertNotCalled(t, "SendText", mock.Anything, audience[0].Phone, mock.Anything)
}

func TestCampaignService_LaunchNotFound(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{})

	f.campaigns.On("FindByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound).Once()

	_, err := svc.Launch(f.ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.contacts.AssertNotCalled(t, "FindAudience", mock.Anything, mock.Anything)
}

func TestCampaignService_LaunchCompletedConflicts(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{})
	campaign := model.NewCampaign(&model.Campaign{Status: model.CampaignCompleted})

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()

	_, err := svc.Launch(f.ctx, campaign.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCampaignService_LaunchRejectsMalformedFilter(t *testing.T) {
	minBudget, maxBudget := int64(50), int64(10)
	filters := map[string]model.AudienceFilter{
		"unknown stage":   {Stage: "vip"},
		"inverted budget": {BudgetMin: &minBudget, BudgetMax: &maxBudget},
	}

	for name, filter := range filters {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			svc := newCampaignService(f, &countingLimiter{})
			campaign := model.NewCampaign(&model.Campaign{AudienceFilter: datatypes.NewJSONType(filter)})

			f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()

			result, err := svc.Launch(f.ctx, campaign.ID)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			f.contacts.AssertNotCalled(t, "FindAudience", mock.Anything, mock.Anything)
			f.campaigns.AssertNotCalled(t, "MarkActive", mock.Anything, mock.Anything, mock.Anything)
			f.campaigns.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCampaignService_LaunchLosesActivationRace(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{})
	campaign := model.NewCampaign()

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, mock.Anything).Return(audienceOf(1), nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.Anything).Return(false, nil).Once()

	_, err := svc.Launch(f.ctx, campaign.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	f.sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_LaunchStopsOnCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	svc := newCampaignService(f, &countingLimiter{})
	campaign := model.NewCampaign()

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, mock.Anything).Return(audienceOf(2), nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).Return(true, nil).Once()

	result, err := svc.Launch(ctx, campaign.ID)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, model.CampaignActive, result.Status)
	assert.Equal(t, 0, result.Results.Sent)
	f.campaigns.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestCampaignService_LimiterErrorStopsLoop(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{err: context.DeadlineExceeded})
	campaign := model.NewCampaign()
	audience := audienceOf(1)

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	f.contacts.On("FindAudience", mock.Anything, mock.Anything).Return(audience, nil).Once()
	f.campaigns.On("MarkActive", mock.Anything, campaign.ID, mock.Anything).Return(true, nil).Once()
	f.campaigns.On("FindMessage", mock.Anything, campaign.ID, audience[0].ID).Return(nil, apperrors.ErrNotFound).Once()

	_, err := svc.Launch(f.ctx, campaign.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCampaignService_Get(t *testing.T) {
	f := newFixture(t)
	svc := newCampaignService(f, &countingLimiter{})
	campaign := model.NewCampaign()

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()

	got, err := svc.Get(f.ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign, got)
}

func TestNewRateLimiter(t *testing.T) {
	assert.True(t, NewRateLimiter(0, 0).Allow())
	limited := NewRateLimiter(1, 1)
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
}
