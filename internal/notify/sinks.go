package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSink writes notifications to the structured log. Used in development.
type LogSink struct{ Log *slog.Logger }

func (s LogSink) Send(_ context.Context, n Notification) error {
	s.Log.Info(n.Title, "action", "notification", "notification_id", n.ID, "channel", n.Channel, "message", n.Message)
	return nil
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, env orders.Envelope) error
}

// KafkaSink puts notifications on the notifications topic for the relay.
type KafkaSink struct {
	Producer EventPublisher
	Service  string
}

func (s KafkaSink) Send(ctx context.Context, n Notification) error {
	orderID, _ := n.Data["order_id"].(string)
	env, err := kafkax.NewEnvelope(n.ID, orders.EventNotificationRaised, s.Service, orderID, n)
	if err != nil {
		return err
	}
	return s.Producer.PublishEvent(ctx, env)
}

type AMQPPublisher interface {
	Publish(ctx context.Context, m rabbitmq.Message) error
}

// AMQPSink fans notifications out to every bound display queue.
type AMQPSink struct {
	Client AMQPPublisher
	Source string
}

func (s AMQPSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	orderNumber, _ := n.Data["order_number"].(string)
	return s.Client.Publish(ctx, rabbitmq.Message{
		Exchange:      rabbitmq.NotificationsExchange,
		MessageID:     n.ID,
		CorrelationID: orderNumber,
		Body:          body,
		Headers: amqp.Table{
			"x-source":  s.Source,
			"x-channel": n.Channel,
		},
	})
}
