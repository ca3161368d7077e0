package model

import (
	"strings"
	"time"
)

// Topic names a realtime event pushed to dashboard observers.
type Topic string

const (
	TopicNewMessage    Topic = "new_message"
	TopicNotification  Topic = "notification"
	TopicMessageStatus Topic = "message_status_update"
	TopicStageChange   Topic = "stage_change"
	TopicCampaign      Topic = "campaign_update"
)

// Subject builds the NATS subject for the topic under the given prefix,
// e.g. "crm.events" + "new_message" -> "crm.events.new_message".
func (t Topic) Subject(prefix string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// TopicFromSubject maps a subject back to a known topic.
func TopicFromSubject(subject string) (Topic, bool) {
	idx := strings.LastIndex(subject, ".")
	t := Topic(subject[idx+1:])
	switch t {
	case TopicNewMessage, TopicNotification, TopicMessageStatus, TopicStageChange, TopicCampaign:
		return t, true
	}
	return "", false
}

// Envelope wraps every realtime payload on the wire.
type Envelope struct {
	Topic     Topic       `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewMessageEvent announces an inbound message.
type NewMessageEvent struct {
	Contact *Contact `json:"contact"`
	Message *Message `json:"message"`
}

// NotificationEvent is a short human readable dashboard notification.
type NotificationEvent struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ContactID string `json:"contact_id,omitempty"`
}

// MessageStatusEvent announces a delivery status change.
type MessageStatusEvent struct {
	ProviderMessageID string         `json:"provider_message_id"`
	Status            DeliveryStatus `json:"status"`
	Timestamp         time.Time      `json:"timestamp"`
	CampaignID        string         `json:"campaign_id,omitempty"`
}

// StageChangeEvent announces a pipeline move.
type StageChangeEvent struct {
	ContactID string `json:"contact_id"`
	OldStage  Stage  `json:"old_stage"`
	NewStage  Stage  `json:"new_stage"`
	Actor     string `json:"actor"`
}

// CampaignUpdateEvent announces campaign progress.
type CampaignUpdateEvent struct {
	CampaignID      string         `json:"campaign_id"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	Sent            int            `json:"sent"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
}
