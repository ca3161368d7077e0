package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Limiter paces outbound campaign sends.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter returns a token bucket allowing sendsPerSecond with the given
// burst. Zero or negative rates disable pacing.
func NewRateLimiter(sendsPerSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if sendsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(sendsPerSecond), burst)
}

// LaunchResult is returned to the operator after a launch.
type LaunchResult struct {
	CampaignID      string               `json:"campaign_id"`
	Status          model.CampaignStatus `json:"status"`
	TotalRecipients int                  `json:"total_recipients"`
	Results         LaunchCounts         `json:"results"`
}

// LaunchCounts holds per-outcome recipient counts.
type LaunchCounts struct {
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Errors  []RecipientError `json:"errors"`
}

// RecipientError records why one recipient was not reached.
type RecipientError struct {
	ContactID string `json:"contact_id"`
	Phone     string `json:"phone"`
	Error     string `json:"error"`
}

// CampaignService launches bulk campaigns.
type CampaignService struct {
	campaigns    storage.CampaignRepo
	contacts     storage.ContactRepo
	outbox       *Outbox
	limiter      Limiter
	personalizer *Personalizer
	publisher    realtime.Publisher
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaigns storage.CampaignRepo,
	contacts storage.ContactRepo,
	outbox *Outbox,
	limiter Limiter,
	personalizer *Personalizer,
	publisher realtime.Publisher,
) *CampaignService {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &CampaignService{
		campaigns:    campaigns,
		contacts:     contacts,
		outbox:       outbox,
		limiter:      limiter,
		personalizer: personalizer,
		publisher:    publisher,
	}
}

// Get returns a campaign with its counters.
func (s *CampaignService) Get(ctx context.Context, id string) (*model.Campaign, error) {
	return s.campaigns.FindByID(ctx, id)
}

// Launch sends the campaign to every contact matching its audience filter,
// one recipient at a time. A failed recipient never stops the batch.
// Recipients that already received this campaign are skipped, so a launch
// interrupted by cancellation can simply be triggered again.
func (s *CampaignService) Launch(ctx context.Context, campaignID string) (*LaunchResult, error) {
	log := logger.FromContext(ctx).With(zap.String("campaign_id", campaignID))

	campaign, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == model.CampaignCompleted {
		return nil, fmt.Errorf("%w: campaign %s is already completed", apperrors.ErrConflict, campaignID)
	}

	filter := campaign.Filter()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	audience, err := s.contacts.FindAudience(ctx, filter)
	if err != nil {
		return nil, err
	}

	activated, err := s.campaigns.MarkActive(ctx, campaignID, utils.Now())
	if err != nil {
		return nil, err
	}
	if !activated {
		return nil, fmt.Errorf("%w: campaign %s can no longer be launched", apperrors.ErrConflict, campaignID)
	}

	result := &LaunchResult{
		CampaignID:      campaignID,
		TotalRecipients: len(audience),
		Status:          model.CampaignActive,
		Results:         LaunchCounts{Errors: []RecipientError{}},
	}
	log.Info("Campaign launched", zap.Int("recipients", len(audience)))
	s.publishProgress(ctx, result)

	for i := range audience {
		contact := &audience[i]
		if err := ctx.Err(); err != nil {
			log.Warn("Campaign launch interrupted", zap.Int("processed", i), zap.Error(err))
			return result, err
		}

		if s.alreadyReached(ctx, campaignID, contact) {
			result.Results.Skipped++
			observer.IncCampaignRecipient("skipped")
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			log.Warn("Campaign launch interrupted while pacing", zap.Int("processed", i), zap.Error(err))
			return result, err
		}

		if err := s.sendOne(ctx, campaign, contact); err != nil {
			result.Results.Failed++
			result.Results.Errors = append(result.Results.Errors, RecipientError{
				ContactID: contact.ID,
				Phone:     contact.Phone,
				Error:     err.Error(),
			})
			observer.IncCampaignRecipient("failed")
			continue
		}
		result.Results.Sent++
		observer.IncCampaignRecipient("sent")
	}

	completed, err := s.campaigns.MarkCompleted(ctx, campaignID, utils.Now())
	if err != nil {
		log.Error("Failed to mark campaign completed", zap.Error(err))
		return result, err
	}
	if completed {
		result.Status = model.CampaignCompleted
	}

	log.Info("Campaign finished",
		zap.Int("sent", result.Results.Sent),
		zap.Int("failed", result.Results.Failed),
		zap.Int("skipped", result.Results.Skipped))
	s.publishProgress(ctx, result)
	return result, nil
}

// alreadyReached reports whether the contact has a successful delivery record
// for this campaign. Lookup errors are treated as not reached.
func (s *CampaignService) alreadyReached(ctx context.Context, campaignID string, contact *model.Contact) bool {
	existing, err := s.campaigns.FindMessage(ctx, campaignID, contact.ID)
	if err != nil {
		if !apperrors.IsNotFoundError(err) {
			logger.FromContext(ctx).Warn("Failed to check previous campaign delivery",
				zap.String("contact_id", contact.ID), zap.Error(err))
		}
		return false
	}
	return existing.Succeeded()
}

// sendOne delivers the campaign to one contact and records the outcome.
func (s *CampaignService) sendOne(ctx context.Context, campaign *model.Campaign, contact *model.Contact) error {
	log := logger.FromContext(ctx).With(
		zap.String("campaign_id", campaign.ID),
		zap.String("contact_id", contact.ID))

	body := s.personalizer.Apply(campaign.MessageTemplate, contact)
	msg, sendErr := s.outbox.SendText(ctx, contact, body)
	now := utils.Now()

	record := &model.CampaignMessage{
		CampaignID: campaign.ID,
		ContactID:  contact.ID,
	}
	event := &model.CampaignEvent{
		CampaignID: campaign.ID,
		ContactID:  contact.ID,
		OccurredAt: now,
	}
	if sendErr != nil {
		log.Warn("Campaign send failed", zap.Error(sendErr))
		record.Status = model.StatusFailed
		record.ErrorDetail = sendErr.Error()
		event.EventType = model.StatusFailed
		event.ProviderMessageID = localFailureKey(campaign.ID, contact.ID)
	} else {
		record.Status = model.StatusSent
		record.ProviderMessageID = msg.ProviderMessageID
		record.SentAt = &now
		event.EventType = model.StatusSent
		event.ProviderMessageID = msg.ProviderMessageID
	}

	if err := s.campaigns.UpsertMessage(ctx, record); err != nil {
		log.Error("Failed to record campaign delivery", zap.Error(err))
	}
	if _, err := s.campaigns.RecordEvent(ctx, event); err != nil {
		log.Error("Failed to record campaign event", zap.Error(err))
	}
	return sendErr
}

func (s *CampaignService) publishProgress(ctx context.Context, result *LaunchResult) {
	s.publisher.Publish(ctx, model.TopicCampaign, model.CampaignUpdateEvent{
		CampaignID:      result.CampaignID,
		Status:          result.Status,
		TotalRecipients: result.TotalRecipients,
		Sent:            result.Results.Sent,
		Failed:          result.Results.Failed,
		Skipped:         result.Results.Skipped,
	})
}

// localFailureKey identifies a send the provider never accepted, so the failure
// is counted once per recipient no matter how often the campaign is relaunched.
func localFailureKey(campaignID, contactID string) string {
	return "local:" + campaignID + ":" + contactID
}
