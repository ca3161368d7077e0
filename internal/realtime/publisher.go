package realtime

import (
	"context"
	"encoding/json"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Publisher pushes events to dashboard observers. Publishing never fails the
// caller: delivery problems are logged and counted, and having no observers
// is not an error.
type Publisher interface {
	Publish(ctx context.Context, topic model.Topic, payload interface{})
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.Topic, interface{}) {}

// encodeEnvelope wraps payload with its topic and a timestamp.
func encodeEnvelope(topic model.Topic, payload interface{}) ([]byte, error) {
	return json.Marshal(model.Envelope{
		Topic:     topic,
		Timestamp: utils.Now(),
		Data:      payload,
	})
}
