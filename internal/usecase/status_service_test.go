package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

func newStatusService(f *fixture) *StatusService {
	return NewStatusService(f.messages, f.campaigns, f.publisher)
}

func TestStatusService_DeliveredUpdatesMessageAndCampaign(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)
	at := time.Unix(1718000000, 0).UTC()
	cm := model.NewCampaignMessage(&model.CampaignMessage{CampaignID: "camp-1", ContactID: "c-1", ProviderMessageID: "wamid.1"})

	f.messages.On("ApplyStatus", mock.Anything, "wamid.1", model.StatusDelivered, at).Return(true, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.1").Return(cm, nil).Once()
	f.campaigns.On("ApplyMessageStatus", mock.Anything, "wamid.1", model.StatusDelivered, at, "").Return(true, nil).Once()
	f.campaigns.On("RecordEvent", mock.Anything, mock.MatchedBy(func(e *model.CampaignEvent) bool {
		return e.CampaignID == "camp-1" && e.ContactID == "c-1" &&
			e.ProviderMessageID == "wamid.1" && e.EventType == model.StatusDelivered && e.OccurredAt.Equal(at)
	})).Return(true, nil).Once()

	result, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.1", Status: "delivered", Timestamp: at})
	require.NoError(t, err)
	assert.True(t, result.MessageUpdated)
	assert.True(t, result.CampaignUpdated)
	assert.True(t, result.Counted)
	assert.Equal(t, "camp-1", result.CampaignID)

	event := f.publisher.last(model.TopicMessageStatus).(model.MessageStatusEvent)
	assert.Equal(t, model.StatusDelivered, event.Status)
	assert.Equal(t, "camp-1", event.CampaignID)
}

func TestStatusService_ReplayDoesNotCountTwice(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)
	cm := model.NewCampaignMessage(&model.CampaignMessage{CampaignID: "camp-1", ProviderMessageID: "wamid.1", Status: model.StatusRead})

	f.messages.On("ApplyStatus", mock.Anything, "wamid.1", model.StatusRead, mock.Anything).Return(false, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.1").Return(cm, nil).Once()
	f.campaigns.On("ApplyMessageStatus", mock.Anything, "wamid.1", model.StatusRead, mock.Anything, "").Return(false, nil).Once()
	f.campaigns.On("RecordEvent", mock.Anything, mock.Anything).Return(false, nil).Once()

	result, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.1", Status: "read"})
	require.NoError(t, err)
	assert.False(t, result.Counted)
	assert.False(t, result.MessageUpdated)
	assert.Empty(t, f.publisher.topics())
}

func TestStatusService_PlainMessageWithoutCampaign(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)

	f.messages.On("ApplyStatus", mock.Anything, "wamid.2", model.StatusRead, mock.Anything).Return(true, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.2").Return(nil, apperrors.ErrNotFound).Once()

	result, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.2", Status: "read"})
	require.NoError(t, err)
	assert.True(t, result.MessageUpdated)
	assert.Empty(t, result.CampaignID)
	f.campaigns.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything)
	assert.Equal(t, []model.Topic{model.TopicMessageStatus}, f.publisher.topics())
}

func TestStatusService_RegressionIgnored(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)

	f.messages.On("ApplyStatus", mock.Anything, "wamid.3", model.StatusDelivered, mock.Anything).Return(false, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.3").Return(nil, apperrors.ErrNotFound).Once()
	f.messages.On("FindByProviderID", mock.Anything, "wamid.3").
		Return(model.NewMessage(&model.Message{ProviderMessageID: "wamid.3", Status: model.StatusRead}), nil).Once()

	result, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.3", Status: "delivered"})
	require.NoError(t, err)
	assert.False(t, result.MessageUpdated)
	assert.Empty(t, f.publisher.topics())
}

func TestStatusService_UnknownMessageIgnored(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)

	f.messages.On("ApplyStatus", mock.Anything, "wamid.ghost", model.StatusSent, mock.Anything).Return(false, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.ghost").Return(nil, apperrors.ErrNotFound).Once()
	f.messages.On("FindByProviderID", mock.Anything, "wamid.ghost").Return(nil, apperrors.ErrNotFound).Once()

	result, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.ghost", Status: "sent"})
	require.NoError(t, err)
	assert.Equal(t, &StatusResult{}, result)
}

func TestStatusService_FailedCarriesErrorDetail(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)
	cm := model.NewCampaignMessage(&model.CampaignMessage{CampaignID: "camp-9", ProviderMessageID: "wamid.f"})

	f.messages.On("ApplyStatus", mock.Anything, "wamid.f", model.StatusFailed, mock.Anything).Return(true, nil).Once()
	f.campaigns.On("FindMessageByProviderID", mock.Anything, "wamid.f").Return(cm, nil).Once()
	f.campaigns.On("ApplyMessageStatus", mock.Anything, "wamid.f", model.StatusFailed, mock.Anything, "131047: Re-engagement message").Return(true, nil).Once()
	f.campaigns.On("RecordEvent", mock.Anything, mock.MatchedBy(func(e *model.CampaignEvent) bool {
		return e.EventType == model.StatusFailed
	})).Return(true, nil).Once()

	_, err := svc.ApplyStatus(f.ctx, StatusUpdate{
		ProviderMessageID: "wamid.f",
		Status:            "failed",
		ErrorDetail:       "131047: Re-engagement message",
	})
	require.NoError(t, err)
}

func TestStatusService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)

	_, err := svc.ApplyStatus(f.ctx, StatusUpdate{Status: "read"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.1", Status: "deleted"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStatusService_StorageErrorPropagates(t *testing.T) {
	f := newFixture(t)
	svc := newStatusService(f)

	f.messages.On("ApplyStatus", mock.Anything, "wamid.1", model.StatusRead, mock.Anything).Return(false, apperrors.ErrDatabase).Once()

	_, err := svc.ApplyStatus(f.ctx, StatusUpdate{ProviderMessageID: "wamid.1", Status: "read"})
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}
