package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Outbox sends WhatsApp messages to a contact and records every successful
// send as an outbound Message, touching the contact's last_contact_at.
type Outbox struct {
	sender   whatsapp.Sender
	messages storage.MessageRepo
	contacts storage.ContactRepo
}

// NewOutbox creates a new outbox
func NewOutbox(sender whatsapp.Sender, messages storage.MessageRepo, contacts storage.ContactRepo) *Outbox {
	return &Outbox{
		sender:   sender,
		messages: messages,
		contacts: contacts,
	}
}

// SendText sends a plain text message.
func (o *Outbox) SendText(ctx context.Context, contact *model.Contact, body string) (*model.Message, error) {
	providerID, err := o.sender.SendText(ctx, contact.Phone, body)
	if err != nil {
		return nil, err
	}
	return o.record(ctx, contact, providerID, model.MessageTypeText, body), nil
}

// SendInteractive sends a reply-button message.
func (o *Outbox) SendInteractive(ctx context.Context, contact *model.Contact, msg whatsapp.Interactive) (*model.Message, error) {
	providerID, err := o.sender.SendInteractive(ctx, contact.Phone, msg)
	if err != nil {
		return nil, err
	}
	return o.record(ctx, contact, providerID, model.MessageTypeInteractive, msg.Body.Text), nil
}

// SendImage sends an image by link with a caption.
func (o *Outbox) SendImage(ctx context.Context, contact *model.Contact, link, caption string) (*model.Message, error) {
	providerID, err := o.sender.SendImage(ctx, contact.Phone, link, caption)
	if err != nil {
		return nil, err
	}
	return o.record(ctx, contact, providerID, model.MessageTypeImage, caption), nil
}

// record persists an outbound message. The provider already accepted it, so
// storage failures are logged and never reported as a failed send.
func (o *Outbox) record(ctx context.Context, contact *model.Contact, providerID, messageType, content string) *model.Message {
	log := logger.FromContext(ctx).With(
		zap.String("contact_id", contact.ID),
		zap.String("provider_message_id", providerID),
	)

	now := utils.Now()
	msg := &model.Message{
		ContactID:         contact.ID,
		ProviderMessageID: providerID,
		Direction:         model.DirectionOutbound,
		MessageType:       messageType,
		Content:           content,
		Status:            model.StatusSent,
		StatusAt:          &now,
		CreatedAt:         now,
	}
	if err := o.messages.Save(ctx, msg); err != nil {
		log.Error("Failed to persist outbound message", zap.Error(err))
	}
	if err := o.contacts.Touch(ctx, contact.ID, now); err != nil {
		log.Warn("Failed to update last contact time", zap.Error(err))
	}
	return msg
}

// detach returns a context that survives the request that created it while
// keeping its values (logger, request ID).
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// timeOr returns t, or now when t is zero.
func timeOr(t time.Time) time.Time {
	if t.IsZero() {
		return utils.Now()
	}
	return t
}
