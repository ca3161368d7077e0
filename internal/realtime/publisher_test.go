package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	jsmock "gitlab.com/timkado/api/wa-property-crm/internal/jetstream/mock"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
)

func TestNATSPublisher_Publish(t *testing.T) {
	client := new(jsmock.ClientMock)
	client.On("Publish", mock.Anything, "crm.events.message_status_update", mock.MatchedBy(func(data []byte) bool {
		var env map[string]interface{}
		if err := json.Unmarshal(data, &env); err != nil {
			return false
		}
		d, _ := env["data"].(map[string]interface{})
		return env["topic"] == "message_status_update" && d["provider_message_id"] == "wamid.1"
	}), map[string]string{"Topic": "message_status_update"}).Return(nil).Once()

	pub := NewNATSPublisher(client, "crm.events")
	pub.Publish(context.Background(), model.TopicMessageStatus, model.MessageStatusEvent{
		ProviderMessageID: "wamid.1",
		Status:            model.StatusDelivered,
	})

	client.AssertExpectations(t)
}

func TestNATSPublisher_SwallowsErrors(t *testing.T) {
	client := new(jsmock.ClientMock)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats: timeout")).Once()

	pub := NewNATSPublisher(client, "crm.events")
	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), model.TopicNotification, model.NotificationEvent{Title: "x"})
	})
	client.AssertExpectations(t)
}

func TestStartRelay_ForwardsKnownTopics(t *testing.T) {
	client := new(jsmock.ClientMock)
	var handler nats.MsgHandler
	client.On("SubscribeBroadcast", "crm.events.>", mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(1).(nats.MsgHandler) }).
		Return(nil, nil).Once()

	hub := NewHub()
	_, err := StartRelay(client, "crm.events", hub)
	require.NoError(t, err)
	require.NotNil(t, handler)

	handler(&nats.Msg{Subject: "crm.events.new_message", Data: []byte(`{"topic":"new_message"}`)})
	handler(&nats.Msg{Subject: "crm.events.unknown", Data: []byte(`{}`)})

	select {
	case data := <-hub.broadcast:
		assert.JSONEq(t, `{"topic":"new_message"}`, string(data))
	default:
		t.Fatal("expected relayed event")
	}
	assert.Empty(t, hub.broadcast)
}
