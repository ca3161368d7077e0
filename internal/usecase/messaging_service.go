package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// MessagingService sends operator-initiated messages to a single contact.
type MessagingService struct {
	contacts     storage.ContactRepo
	properties   storage.PropertyRepo
	outbox       *Outbox
	personalizer *Personalizer
}

// NewMessagingService creates a new messaging service
func NewMessagingService(contacts storage.ContactRepo, properties storage.PropertyRepo, outbox *Outbox, personalizer *Personalizer) *MessagingService {
	return &MessagingService{
		contacts:     contacts,
		properties:   properties,
		outbox:       outbox,
		personalizer: personalizer,
	}
}

// SendMessage sends free text to a contact. Gateway errors are returned as is.
func (s *MessagingService) SendMessage(ctx context.Context, contactID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if contactID == "" || text == "" {
		return nil, fmt.Errorf("%w: contact_id and message are required", apperrors.ErrValidation)
	}
	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	msg, err := s.outbox.SendText(ctx, contact, text)
	if err != nil {
		logger.FromContext(ctx).Warn("Direct send failed", zap.String("contact_id", contactID), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

// SendProperty shares a property listing with a contact, as an image with
// caption when the listing has a picture and as text otherwise.
func (s *MessagingService) SendProperty(ctx context.Context, contactID, propertyID, note string) (*model.Message, error) {
	if contactID == "" || propertyID == "" {
		return nil, fmt.Errorf("%w: contact_id and property_id are required", apperrors.ErrValidation)
	}
	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	property, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	body := s.describeProperty(property, note)
	var msg *model.Message
	if property.ImageURL != "" {
		msg, err = s.outbox.SendImage(ctx, contact, property.ImageURL, body)
	} else {
		msg, err = s.outbox.SendText(ctx, contact, body)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("Property send failed",
			zap.String("contact_id", contactID),
			zap.String("property_id", propertyID),
			zap.Error(err))
		return nil, err
	}
	return msg, nil
}

func (s *MessagingService) describeProperty(p *model.Property, note string) string {
	var b strings.Builder
	if note = strings.TrimSpace(note); note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "*%s*\n", p.Title)
	if p.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", p.Location)
	}
	if p.Price > 0 {
		fmt.Fprintf(&b, "Price: %s\n", s.personalizer.Money(p.Price))
	}
	if p.Bedrooms > 0 {
		fmt.Fprintf(&b, "Bedrooms: %d\n", p.Bedrooms)
	}
	if p.PropertyType != "" {
		fmt.Fprintf(&b, "Type: %s\n", p.PropertyType)
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(p.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
