package model

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// FakePhone returns an MSISDN in the digits-only form the provider uses.
func FakePhone() string {
	return "234" + gofakeit.Numerify("80########")
}

// NewContact creates a new Contact instance with default fake data.
func NewContact(overrideDefaults ...*Contact) *Contact {
	lastContact := utils.Now().Add(-time.Duration(gofakeit.Number(1, 72)) * time.Hour)
	base := &Contact{
		ID:                gofakeit.UUID(),
		Phone:             FakePhone(),
		Name:              gofakeit.Name(),
		Email:             gofakeit.Email(),
		Intent:            gofakeit.RandomString([]string{IntentBuy, IntentRent, IntentInvest}),
		PreferredLocation: gofakeit.City(),
		PropertyType:      gofakeit.RandomString([]string{"apartment", "duplex", "bungalow", "land"}),
		Stage:             StageNew,
		Source:            SourceWhatsApp,
		CreatedAt:         utils.Now().Add(-time.Duration(gofakeit.Number(1, 365)) * 24 * time.Hour),
		UpdatedAt:         utils.Now(),
		LastContactAt:     &lastContact,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Stage != "" {
			base.Stage = ovr.Stage
		}
		if ovr.PreferredLocation != "" {
			base.PreferredLocation = ovr.PreferredLocation
		}
		base.BudgetMin = ovr.BudgetMin
		base.BudgetMax = ovr.BudgetMax
		if ovr.LastContactAt != nil {
			base.LastContactAt = ovr.LastContactAt
		}
	}
	return base
}

// NewMessage creates a new Message instance with default fake data.
func NewMessage(overrideDefaults ...*Message) *Message {
	ts := utils.Now().Add(-time.Duration(gofakeit.Number(1, 600)) * time.Second)
	base := &Message{
		ContactID:         gofakeit.UUID(),
		ProviderMessageID: "wamid." + gofakeit.LetterN(24),
		Direction:         DirectionInbound,
		MessageType:       MessageTypeText,
		Content:           gofakeit.Sentence(6),
		Status:            StatusReceived,
		ProviderTimestamp: &ts,
		CreatedAt:         utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.ContactID != "" {
			base.ContactID = ovr.ContactID
		}
		if ovr.ProviderMessageID != "" {
			base.ProviderMessageID = ovr.ProviderMessageID
		}
		if ovr.Direction != "" {
			base.Direction = ovr.Direction
		}
		if ovr.Content != "" {
			base.Content = ovr.Content
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	return base
}

// NewCampaign creates a new draft Campaign with default fake data.
func NewCampaign(overrideDefaults ...*Campaign) *Campaign {
	base := &Campaign{
		ID:              gofakeit.UUID(),
		Name:            gofakeit.BuzzWord() + " campaign",
		MessageTemplate: "Hi {name}, new listings in {location} within {budget}.",
		AudienceFilter:  datatypes.NewJSONType(AudienceFilter{Stage: StageQualified}),
		ScheduleType:    ScheduleImmediate,
		Status:          CampaignDraft,
		CreatedAt:       utils.Now().Add(-time.Hour),
		UpdatedAt:       utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.MessageTemplate != "" {
			base.MessageTemplate = ovr.MessageTemplate
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.ScheduleType != "" {
			base.ScheduleType = ovr.ScheduleType
		}
		if ovr.ScheduledAt != nil {
			base.ScheduledAt = ovr.ScheduledAt
		}
		if ovr.Filter() != (AudienceFilter{}) {
			base.AudienceFilter = ovr.AudienceFilter
		}
	}
	return base
}

// NewCampaignMessage creates a sent CampaignMessage with default fake data.
func NewCampaignMessage(overrideDefaults ...*CampaignMessage) *CampaignMessage {
	sentAt := utils.Now()
	base := &CampaignMessage{
		CampaignID:        gofakeit.UUID(),
		ContactID:         gofakeit.UUID(),
		ProviderMessageID: "wamid." + gofakeit.LetterN(24),
		Status:            StatusSent,
		SentAt:            &sentAt,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.CampaignID != "" {
			base.CampaignID = ovr.CampaignID
		}
		if ovr.ContactID != "" {
			base.ContactID = ovr.ContactID
		}
		if ovr.ProviderMessageID != "" {
			base.ProviderMessageID = ovr.ProviderMessageID
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		base.ErrorDetail = ovr.ErrorDetail
	}
	return base
}

// NewProperty creates a new Property instance with default fake data.
func NewProperty(overrideDefaults ...*Property) *Property {
	bedrooms := gofakeit.Number(1, 6)
	base := &Property{
		ID:           gofakeit.UUID(),
		Title:        fmt.Sprintf("%d bedroom %s", bedrooms, gofakeit.RandomString([]string{"apartment", "duplex", "terrace"})),
		Location:     gofakeit.City(),
		Price:        int64(gofakeit.Number(5, 500)) * 1_000_000,
		Bedrooms:     bedrooms,
		PropertyType: "apartment",
		Description:  gofakeit.Sentence(12),
		ImageURL:     gofakeit.URL(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Title != "" {
			base.Title = ovr.Title
		}
		if ovr.Price != 0 {
			base.Price = ovr.Price
		}
		base.ImageURL = ovr.ImageURL
	}
	return base
}

// NewTextWebhook builds a webhook payload carrying one inbound text message.
func NewTextWebhook(from, profileName, body string) *WebhookPayload {
	msg := InboundMessage{
		From:      from,
		ID:        "wamid." + gofakeit.LetterN(24),
		Timestamp: fmt.Sprintf("%d", utils.Now().Unix()),
		Type:      MessageTypeText,
		Text:      &InboundText{Body: body},
	}
	return NewWebhook([]InboundMessage{msg}, nil, profileName)
}

// NewStatusWebhook builds a webhook payload carrying one status callback.
func NewStatusWebhook(providerID string, status DeliveryStatus) *WebhookPayload {
	st := StatusCallback{
		ID:          providerID,
		Status:      string(status),
		Timestamp:   fmt.Sprintf("%d", utils.Now().Unix()),
		RecipientID: FakePhone(),
	}
	return NewWebhook(nil, []StatusCallback{st}, "")
}

// NewWebhook wraps messages and statuses in a single entry/change.
func NewWebhook(messages []InboundMessage, statuses []StatusCallback, profileName string) *WebhookPayload {
	value := WebhookValue{
		MessagingProduct: "whatsapp",
		Metadata: WebhookMetadata{
			DisplayPhoneNumber: "15550001111",
			PhoneNumberID:      gofakeit.Numerify("##########"),
		},
		Messages: messages,
		Statuses: statuses,
	}
	for _, m := range messages {
		c := WebhookContact{WaID: m.From}
		c.Profile.Name = profileName
		value.Contacts = append(value.Contacts, c)
	}
	return &WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []WebhookEntry{{
			ID:      gofakeit.Numerify("##########"),
			Changes: []WebhookChange{{Field: "messages", Value: value}},
		}},
	}
}

// NewInboundMessagePayload builds a webhook body carrying one customer message
// from phone. Text is random unless given.
func NewInboundMessagePayload(phone, text string) *WebhookPayload {
	if text == "" {
		text = gofakeit.Sentence(5)
	}
	contact := WebhookContact{WaID: phone}
	contact.Profile.Name = gofakeit.Name()

	return newWebhookPayload(WebhookValue{
		Contacts: []WebhookContact{contact},
		Messages: []InboundMessage{{
			From:      phone,
			ID:        "wamid." + gofakeit.LetterN(24),
			Timestamp: fmt.Sprintf("%d", utils.Now().Unix()),
			Type:      MessageTypeText,
			Text:      &InboundText{Body: text},
		}},
	})
}

// NewStatusPayload builds a webhook body carrying one delivery status callback.
func NewStatusPayload(providerMessageID string, status DeliveryStatus, recipient string) *WebhookPayload {
	return newWebhookPayload(WebhookValue{
		Statuses: []StatusCallback{{
			ID:          providerMessageID,
			Status:      string(status),
			Timestamp:   fmt.Sprintf("%d", utils.Now().Unix()),
			RecipientID: recipient,
		}},
	})
}

func newWebhookPayload(value WebhookValue) *WebhookPayload {
	value.MessagingProduct = "whatsapp"
	value.Metadata = WebhookMetadata{
		DisplayPhoneNumber: FakePhone(),
		PhoneNumberID:      gofakeit.Numerify("1##############"),
	}
	return &WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []WebhookEntry{{
			ID:      gofakeit.Numerify("1##############"),
			Changes: []WebhookChange{{Field: "messages", Value: value}},
		}},
	}
}
