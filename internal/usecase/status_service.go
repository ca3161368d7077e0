package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// StatusUpdate is one delivery status callback from the provider.
type StatusUpdate struct {
	ProviderMessageID string
	Status            string
	Timestamp         time.Time
	RecipientID       string
	ErrorDetail       string
}

// StatusResult describes what a status callback changed.
type StatusResult struct {
	MessageUpdated  bool
	CampaignID      string
	CampaignUpdated bool
	Counted         bool
}

// StatusService reconciles provider delivery callbacks with stored messages.
type StatusService struct {
	messages  storage.MessageRepo
	campaigns storage.CampaignRepo
	publisher realtime.Publisher
}

// NewStatusService creates a new status service
func NewStatusService(messages storage.MessageRepo, campaigns storage.CampaignRepo, publisher realtime.Publisher) *StatusService {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &StatusService{messages: messages, campaigns: campaigns, publisher: publisher}
}

// ApplyStatus moves the message, and its campaign record if any, forward in
// the status lattice. Regressions and repeats are ignored. Campaign counters
// are driven by append-only events, so replays never count twice.
func (s *StatusService) ApplyStatus(ctx context.Context, update StatusUpdate) (*StatusResult, error) {
	providerID := strings.TrimSpace(update.ProviderMessageID)
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider message id is required", apperrors.ErrValidation)
	}
	status, err := model.ParseDeliveryStatus(update.Status)
	if err != nil {
		observer.IncStatusCallback(update.Status, "invalid")
		return nil, err
	}
	at := timeOr(update.Timestamp)
	log := logger.FromContext(ctx).With(
		zap.String("provider_message_id", providerID),
		zap.String("status", string(status)))

	result := &StatusResult{}
	result.MessageUpdated, err = s.messages.ApplyStatus(ctx, providerID, status, at)
	if err != nil {
		return nil, err
	}

	cm, err := s.campaigns.FindMessageByProviderID(ctx, providerID)
	switch {
	case apperrors.IsNotFoundError(err):
		cm = nil
	case err != nil:
		return result, err
	}

	if cm != nil {
		result.CampaignID = cm.CampaignID
		result.CampaignUpdated, err = s.campaigns.ApplyMessageStatus(ctx, providerID, status, at, update.ErrorDetail)
		if err != nil {
			return result, err
		}
		result.Counted, err = s.campaigns.RecordEvent(ctx, &model.CampaignEvent{
			CampaignID:        cm.CampaignID,
			ContactID:         cm.ContactID,
			ProviderMessageID: providerID,
			EventType:         status,
			OccurredAt:        at,
		})
		if err != nil {
			return result, err
		}
	}

	if !result.MessageUpdated && !result.CampaignUpdated {
		if cm == nil && !s.knownMessage(ctx, providerID) {
			log.Info("Status callback for unknown message ignored")
			observer.IncStatusCallback(string(status), "unknown")
			return result, nil
		}
		log.Debug("Status callback would not advance state, ignored")
		observer.IncStatusCallback(string(status), "ignored")
		return result, nil
	}

	observer.IncStatusCallback(string(status), "applied")
	s.publisher.Publish(ctx, model.TopicMessageStatus, model.MessageStatusEvent{
		ProviderMessageID: providerID,
		Status:            status,
		Timestamp:         at,
		CampaignID:        result.CampaignID,
	})
	log.Debug("Status applied",
		zap.Bool("message_updated", result.MessageUpdated),
		zap.String("campaign_id", result.CampaignID),
		zap.Bool("counted", result.Counted))
	return result, nil
}

func (s *StatusService) knownMessage(ctx context.Context, providerID string) bool {
	_, err := s.messages.FindByProviderID(ctx, providerID)
	return err == nil
}
