package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// Quick-reply button ids offered by the greeting menu.
const (
	ReplyIntentBuy    = "intent_buy"
	ReplyIntentRent   = "intent_rent"
	ReplyIntentInvest = "intent_invest"
)

var replyIntents = map[string]string{
	ReplyIntentBuy:    model.IntentBuy,
	ReplyIntentRent:   model.IntentRent,
	ReplyIntentInvest: model.IntentInvest,
}

// Canned replies.
const (
	greetingText    = "Hello %s! Welcome to %s. Are you looking to buy, rent or invest in property?"
	intakeText      = "To help us find the right property, please share your preferred location, budget range and the number of bedrooms you need."
	intentAckText   = "Great, you want to %s. "
	viewingText     = "Thanks for your interest! An agent will share matching properties and viewing options with you shortly."
	schedulingText  = "Thanks! We are confirming your viewing schedule and will get back to you shortly."
	followUpText    = "Thanks for your message! An agent will follow up with you shortly."
	apologyText     = "Sorry, something went wrong on our side. An agent will get back to you shortly."
	greetingAdvance = "Greeting menu sent"
)

// ReplyHandler answers one inbound message for a contact in a given stage.
type ReplyHandler func(ctx context.Context, contact *model.Contact, msg model.InboundMessage) error

// AutoResponder routes inbound messages to a reply handler by the contact's
// stage before the message was processed.
type AutoResponder struct {
	handlers       map[model.Stage]ReplyHandler
	defaultHandler ReplyHandler

	outbox       *Outbox
	stages       *StageService
	contacts     storage.ContactRepo
	businessName string
}

// NewAutoResponder creates a responder with the standard stage handlers registered.
func NewAutoResponder(outbox *Outbox, stages *StageService, contacts storage.ContactRepo, businessName string) *AutoResponder {
	r := &AutoResponder{
		handlers:     make(map[model.Stage]ReplyHandler),
		outbox:       outbox,
		stages:       stages,
		contacts:     contacts,
		businessName: businessName,
	}
	r.Register(model.StageNew, r.greet)
	r.Register(model.StageQualified, r.qualify)
	r.Register(model.StageViewing, r.textReply(viewingText))
	r.Register(model.StageScheduling, r.textReply(schedulingText))
	r.RegisterDefault(r.textReply(followUpText))
	return r
}

// Register registers a handler for a stage
func (r *AutoResponder) Register(stage model.Stage, handler ReplyHandler) {
	r.handlers[stage] = handler
}

// RegisterDefault registers the handler for stages without a specific one
func (r *AutoResponder) RegisterDefault(handler ReplyHandler) {
	r.defaultHandler = handler
}

// Respond runs the handler for stage. Any failure is answered with an apology
// to the customer and is never returned.
func (r *AutoResponder) Respond(ctx context.Context, contact *model.Contact, stage model.Stage, msg model.InboundMessage) {
	log := logger.FromContext(ctx).With(
		zap.String("contact_id", contact.ID),
		zap.String("stage", string(stage)))

	handler, ok := r.handlers[model.NormalizeStage(string(stage))]
	if !ok {
		handler = r.defaultHandler
	}
	if handler == nil {
		log.Warn("No auto-reply handler for stage")
		return
	}

	if err := handler(ctx, contact, msg); err != nil {
		log.Error("Auto-reply failed, sending apology", zap.Error(err))
		if _, apologyErr := r.outbox.SendText(ctx, contact, apologyText); apologyErr != nil {
			log.Error("Failed to send apology", zap.Error(apologyErr))
		}
	}
}

func (r *AutoResponder) greet(ctx context.Context, contact *model.Contact, _ model.InboundMessage) error {
	name := contact.Name
	if name == "" {
		name = fallbackName
	}
	menu := whatsapp.NewButtonMessage(
		fmt.Sprintf(greetingText, name, r.businessName),
		whatsapp.ReplyTitle{ID: ReplyIntentBuy, Title: "Buy"},
		whatsapp.ReplyTitle{ID: ReplyIntentRent, Title: "Rent"},
		whatsapp.ReplyTitle{ID: ReplyIntentInvest, Title: "Invest"},
	)
	if _, err := r.outbox.SendInteractive(ctx, contact, menu); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	// The customer already has the menu; a failed advance only leaves the
	// contact at new, and the next message greets them again.
	if _, err := r.stages.transition(ctx, contact.ID, model.StageQualified, greetingAdvance, model.ActorSystem); err != nil {
		logger.FromContext(ctx).Error("Failed to advance stage after greeting",
			zap.String("contact_id", contact.ID), zap.Error(err))
	}
	return nil
}

func (r *AutoResponder) qualify(ctx context.Context, contact *model.Contact, msg model.InboundMessage) error {
	body := intakeText
	if intent, ok := replyIntents[msg.ReplyID()]; ok {
		if err := r.contacts.UpdateIntent(ctx, contact.ID, intent); err != nil {
			return fmt.Errorf("save intent: %w", err)
		}
		body = fmt.Sprintf(intentAckText, intent) + intakeText
	}
	_, err := r.outbox.SendText(ctx, contact, body)
	return err
}

func (r *AutoResponder) textReply(text string) ReplyHandler {
	return func(ctx context.Context, contact *model.Contact, _ model.InboundMessage) error {
		_, err := r.outbox.SendText(ctx, contact, text)
		return err
	}
}
