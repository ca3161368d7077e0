package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	storagemock "gitlab.com/timkado/api/wa-property-crm/internal/storage/mock"
	whatsappmock "gitlab.com/timkado/api/wa-property-crm/internal/whatsapp/mock"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

type publishedEvent struct {
	topic   model.Topic
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, topic model.Topic, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{topic: topic, payload: payload})
}

func (r *recordingPublisher) topics() []model.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Topic, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.topic)
	}
	return out
}

func (r *recordingPublisher) last(topic model.Topic) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].topic == topic {
			return r.events[i].payload
		}
	}
	return nil
}

type fixture struct {
	ctx        context.Context
	contacts   *storagemock.ContactRepoMock
	messages   *storagemock.MessageRepoMock
	campaigns  *storagemock.CampaignRepoMock
	activities *storagemock.ActivityRepoMock
	properties *storagemock.PropertyRepoMock
	sender     *whatsappmock.SenderMock
	publisher  *recordingPublisher
	outbox     *Outbox
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		ctx:        logger.WithLogger(context.Background(), zaptest.NewLogger(t)),
		contacts:   new(storagemock.ContactRepoMock),
		messages:   new(storagemock.MessageRepoMock),
		campaigns:  new(storagemock.CampaignRepoMock),
		activities: new(storagemock.ActivityRepoMock),
		properties: new(storagemock.PropertyRepoMock),
		sender:     new(whatsappmock.SenderMock),
		publisher:  &recordingPublisher{},
	}
	f.outbox = NewOutbox(f.sender, f.messages, f.contacts)
	t.Cleanup(func() {
		f.contacts.AssertExpectations(t)
		f.messages.AssertExpectations(t)
		f.campaigns.AssertExpectations(t)
		f.activities.AssertExpectations(t)
		f.properties.AssertExpectations(t)
		f.sender.AssertExpectations(t)
	})
	return f
}

func isDirection(direction string) interface{} {
	return mock.MatchedBy(func(m *model.Message) bool { return m.Direction == direction })
}

// allowOutboundRecording accepts the bookkeeping every successful send performs.
func (f *fixture) allowOutboundRecording() {
	f.messages.On("Save", mock.Anything, isDirection(model.DirectionOutbound)).Return(nil).Maybe()
	f.contacts.On("Touch", mock.Anything, mock.Anything, mock.AnythingOfType("time.Time")).Return(nil).Maybe()
}

type countingLimiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLimiter) Wait(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.err
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }
