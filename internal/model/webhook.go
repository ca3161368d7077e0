package model

import (
	"fmt"
	"strings"
)

// WebhookPayload is the body the WhatsApp Cloud API posts to the webhook.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusCallback `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

// InboundMessage is a single customer message inside a webhook change.
type InboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *InboundText        `json:"text,omitempty"`
	Interactive *InboundInteractive `json:"interactive,omitempty"`
	Button      *InboundButton      `json:"button,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundInteractive struct {
	Type        string      `json:"type"`
	ButtonReply *ReplyTitle `json:"button_reply,omitempty"`
	ListReply   *ReplyTitle `json:"list_reply,omitempty"`
}

type ReplyTitle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type InboundButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Content extracts the human readable body of the message.
func (m InboundMessage) Content() string {
	switch {
	case m.Type == MessageTypeText && m.Text != nil:
		return m.Text.Body
	case m.Type == MessageTypeInteractive && m.Interactive != nil:
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.Title
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.Title
		}
	case m.Type == MessageTypeButton && m.Button != nil:
		return m.Button.Text
	}
	return fmt.Sprintf("[%s message]", m.Type)
}

// ReplyID returns the id of the tapped button or list row, if any.
func (m InboundMessage) ReplyID() string {
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.ID
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.ID
		}
	}
	if m.Button != nil {
		return m.Button.Payload
	}
	return ""
}

// StatusCallback reports a delivery state change for an outbound message.
type StatusCallback struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	RecipientID string          `json:"recipient_id"`
	Errors      []ProviderError `json:"errors,omitempty"`
}

// ProviderError is an error object as returned by the Graph API.
type ProviderError struct {
	Code    int    `json:"code"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorDetail flattens callback errors into a single line.
func (s StatusCallback) ErrorDetail() string {
	parts := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		text := e.Message
		if text == "" {
			text = e.Title
		}
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, text))
	}
	return strings.Join(parts, "; ")
}

// ProfileName returns the display name the provider supplied for waID.
func (v WebhookValue) ProfileName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}
