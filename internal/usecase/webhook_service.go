package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/internal/worker"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// WebhookService processes WhatsApp webhook deliveries.
type WebhookService struct {
	contacts  storage.ContactRepo
	messages  storage.MessageRepo
	statuses  *StatusService
	responder *AutoResponder
	publisher realtime.Publisher
	pool      worker.Submitter
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	contacts storage.ContactRepo,
	messages storage.MessageRepo,
	statuses *StatusService,
	responder *AutoResponder,
	publisher realtime.Publisher,
	pool worker.Submitter,
) *WebhookService {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	if pool == nil {
		pool = worker.Inline{}
	}
	return &WebhookService{
		contacts:  contacts,
		messages:  messages,
		statuses:  statuses,
		responder: responder,
		publisher: publisher,
		pool:      pool,
	}
}

// Accept hands the payload to the worker pool, waiting no longer than the
// pool's MaxBlock for a free worker. When the pool rejects the task the
// payload is processed on the caller's goroutine.
func (s *WebhookService) Accept(ctx context.Context, payload *model.WebhookPayload) {
	task := worker.Task{
		Ctx:  detach(ctx),
		Name: "webhook",
		Run: func(ctx context.Context) error {
			s.Process(ctx, payload)
			return nil
		},
	}
	if err := s.pool.Submit(task); err != nil {
		logger.FromContext(ctx).Warn("Webhook pool unavailable, processing inline", zap.Error(err))
		s.Process(detach(ctx), payload)
	}
}

// Process handles every message and status in the payload. Failures are
// logged per item and never stop the remaining items.
func (s *WebhookService) Process(ctx context.Context, payload *model.WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			for _, msg := range value.Messages {
				s.observe(ctx, "message", func(ctx context.Context) error { return s.HandleMessage(ctx, value, msg) })
			}
			for _, st := range value.Statuses {
				s.observe(ctx, "status", func(ctx context.Context) error { return s.HandleStatus(ctx, st) })
			}
		}
	}
}

func (s *WebhookService) observe(ctx context.Context, kind string, fn func(ctx context.Context) error) {
	observer.IncWebhookReceived(kind)
	start := time.Now()
	err := utils.WrapWithContextRecovery(fn)(ctx)
	observer.ObserveWebhookProcessed(kind, time.Since(start), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to process webhook item", zap.String("kind", kind), zap.Error(err))
	}
}

// HandleMessage stores one inbound customer message and answers it.
func (s *WebhookService) HandleMessage(ctx context.Context, value model.WebhookValue, in model.InboundMessage) error {
	phone := whatsapp.NormalizePhone(in.From)
	if phone == "" || in.ID == "" {
		return fmt.Errorf("%w: inbound message without sender or id", apperrors.ErrValidation)
	}
	log := logger.FromContext(ctx).With(
		zap.String("provider_message_id", in.ID),
		zap.String("from", phone),
		zap.String("type", in.Type))
	ctx = logger.WithLogger(ctx, log)

	now := utils.Now()
	contact, created, err := s.contacts.FindOrCreate(ctx, model.Contact{
		Phone:         phone,
		Name:          value.ProfileName(in.From),
		Stage:         model.StageNew,
		Source:        model.SourceWhatsApp,
		LastContactAt: &now,
	})
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	// The reply is chosen from the stage as it was before this message.
	stage := contact.Stage

	if created {
		log.Info("New contact created", zap.String("contact_id", contact.ID))
	} else if err := s.contacts.Touch(ctx, contact.ID, now); err != nil {
		log.Warn("Failed to update last contact time", zap.Error(err))
	}

	var providerTime *time.Time
	if t := utils.ParseUnixSeconds(in.Timestamp); !t.IsZero() {
		providerTime = &t
	}
	message := &model.Message{
		ContactID:         contact.ID,
		ProviderMessageID: in.ID,
		Direction:         model.DirectionInbound,
		MessageType:       in.Type,
		Content:           in.Content(),
		Status:            model.StatusReceived,
		StatusAt:          &now,
		ProviderTimestamp: providerTime,
		CreatedAt:         now,
	}
	if err := s.messages.Save(ctx, message); err != nil {
		if apperrors.IsDuplicateError(err) {
			log.Info("Duplicate inbound message ignored")
			return nil
		}
		return fmt.Errorf("save inbound message: %w", err)
	}

	s.publisher.Publish(ctx, model.TopicNewMessage, model.NewMessageEvent{Contact: contact, Message: message})
	s.publisher.Publish(ctx, model.TopicNotification, model.NotificationEvent{
		Type:      "new_message",
		Title:     "New message from " + displayName(contact),
		Message:   message.Content,
		ContactID: contact.ID,
	})

	s.responder.Respond(ctx, contact, stage, in)
	return nil
}

// HandleStatus applies one delivery status callback.
func (s *WebhookService) HandleStatus(ctx context.Context, st model.StatusCallback) error {
	_, err := s.statuses.ApplyStatus(ctx, StatusUpdate{
		ProviderMessageID: st.ID,
		Status:            st.Status,
		Timestamp:         utils.ParseUnixSeconds(st.Timestamp),
		RecipientID:       st.RecipientID,
		ErrorDetail:       st.ErrorDetail(),
	})
	return err
}

func displayName(c *model.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Phone
}
