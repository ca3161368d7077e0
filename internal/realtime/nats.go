package realtime

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/jetstream"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// NATSPublisher publishes events to JetStream under <prefix>.<topic>.
type NATSPublisher struct {
	client jetstream.ClientInterface
	prefix string
}

// NewNATSPublisher creates a publisher on the given subject prefix.
func NewNATSPublisher(client jetstream.ClientInterface, prefix string) *NATSPublisher {
	return &NATSPublisher{client: client, prefix: prefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, topic model.Topic, payload interface{}) {
	log := logger.FromContext(ctx).With(zap.String("topic", string(topic)))

	data, err := encodeEnvelope(topic, payload)
	if err != nil {
		log.Error("Failed to encode realtime event", zap.Error(err))
		observer.IncRealtimePublishFailure("nats", string(topic))
		return
	}

	headers := map[string]string{"Topic": string(topic)}
	if err := p.client.Publish(ctx, topic.Subject(p.prefix), data, headers); err != nil {
		log.Warn("Failed to publish realtime event", zap.Error(err))
		observer.IncRealtimePublishFailure("nats", string(topic))
	}
}

// StartRelay forwards every event published on the prefix, by any replica,
// to the local websocket hub.
func StartRelay(client jetstream.ClientInterface, prefix string, hub *Hub) (*nats.Subscription, error) {
	return client.SubscribeBroadcast(prefix+".>", func(msg *nats.Msg) {
		topic, ok := model.TopicFromSubject(msg.Subject)
		if !ok {
			logger.Log.Debug("Ignoring event on unknown subject", zap.String("subject", msg.Subject))
			return
		}
		if !hub.BroadcastRaw(msg.Data) {
			logger.Log.Warn("Realtime broadcast buffer full, dropping relayed event", zap.String("topic", string(topic)))
			observer.IncRealtimePublishFailure("relay", string(topic))
		}
	})
}
