package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logging"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/rabbitmq"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDedup struct{ mock.Mock }

func (m *mockDedup) Claim(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockDedup) Release(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) Send(ctx context.Context, n Notification) error {
	return m.Called(ctx, n).Error(0)
}

func message(t *testing.T, eventType string, n Notification) kafkago.Message {
	t.Helper()
	env, err := kafkax.NewEnvelope(n.ID, eventType, "test", "o1", n)
	require.NoError(t, err)
	b, err := kafkax.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestRelay_DeliversOnce(t *testing.T) {
	ctx := context.Background()
	d, s := &mockDedup{}, &mockSink{}
	r := &Relay{Dedup: d, Sink: s, Log: logging.Discard()}
	n := Notification{ID: "n1", Channel: ChannelWaitstaff, Title: "ready"}
	m := message(t, orders.EventNotificationRaised, n)

	d.On("Claim", ctx, "n1").Return(true, nil).Once()
	d.On("Claim", ctx, "n1").Return(false, nil).Once()
	s.On("Send", ctx, mock.MatchedBy(func(got Notification) bool { return got.ID == "n1" })).Return(nil).Once()

	require.NoError(t, r.Handle(ctx, m))
	require.NoError(t, r.Handle(ctx, m))

	d.AssertExpectations(t)
	s.AssertExpectations(t)
}

func TestRelay_ReleasesClaimWhenSinkFails(t *testing.T) {
	ctx := context.Background()
	d, s := &mockDedup{}, &mockSink{}
	r := &Relay{Dedup: d, Sink: s, Log: logging.Discard()}
	m := message(t, orders.EventNotificationRaised, Notification{ID: "n2"})

	d.On("Claim", ctx, "n2").Return(true, nil)
	d.On("Release", ctx, "n2").Return(nil)
	s.On("Send", ctx, mock.Anything).Return(errors.New("broker down"))

	err := r.Handle(ctx, m)
	assert.ErrorContains(t, err, "broker down")
	d.AssertCalled(t, "Release", ctx, "n2")
}

func TestRelay_SkipsForeignAndBrokenMessages(t *testing.T) {
	ctx := context.Background()
	d, s := &mockDedup{}, &mockSink{}
	r := &Relay{Dedup: d, Sink: s, Log: logging.Discard()}

	require.NoError(t, r.Handle(ctx, kafkago.Message{Value: []byte("{not json")}))
	require.NoError(t, r.Handle(ctx, message(t, orders.EventOrderCreated, Notification{ID: "x"})))

	d.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything)
	s.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishEvent(ctx context.Context, env orders.Envelope) error {
	return m.Called(ctx, env).Error(0)
}

func (m *mockPublisher) Publish(ctx context.Context, msg rabbitmq.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func TestKafkaSink_WrapsNotification(t *testing.T) {
	ctx := context.Background()
	p := &mockPublisher{}
	n := Notification{ID: "n3", Data: map[string]any{"order_id": "o9"}, CreatedAt: time.Now()}

	p.On("PublishEvent", ctx, mock.MatchedBy(func(env orders.Envelope) bool {
		return env.EventID == "n3" && env.EventType == orders.EventNotificationRaised && env.CorrelationID == "o9"
	})).Return(nil)

	require.NoError(t, KafkaSink{Producer: p, Service: "pos-api"}.Send(ctx, n))
	p.AssertExpectations(t)
}

func TestAMQPSink_PublishesToFanout(t *testing.T) {
	ctx := context.Background()
	p := &mockPublisher{}
	n := Notification{ID: "n4", Channel: ChannelKitchen, Data: map[string]any{"order_number": "ORD-1"}}

	p.On("Publish", ctx, mock.MatchedBy(func(m rabbitmq.Message) bool {
		return m.Exchange == rabbitmq.NotificationsExchange && m.MessageID == "n4" &&
			m.CorrelationID == "ORD-1" && m.Headers["x-channel"] == ChannelKitchen
	})).Return(nil)

	require.NoError(t, AMQPSink{Client: p, Source: "pos-api"}.Send(ctx, n))
	p.AssertExpectations(t)
}
