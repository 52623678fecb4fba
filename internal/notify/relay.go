package notify

import (
	"context"
	"errors"
	"log/slog"

	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper claims an event id once; a second claim reports false.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Relay moves notifications from the Kafka topic to a downstream sink, delivering
// each notification id at most once.
type Relay struct {
	Dedup Deduper
	Sink  Sink
	Log   *slog.Logger
}

// Handle is installed as the consumer handler.
func (r *Relay) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		r.Log.Error("drop undecodable message", "action", "relay_bad_envelope", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != orders.EventNotificationRaised {
		return nil
	}

	claimed, err := r.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		r.Log.Debug("duplicate notification skipped", "action", "relay_duplicate", "event_id", env.EventID)
		return nil
	}

	n, err := kafkax.UnwrapPayload[Notification](env.Payload)
	if err != nil {
		r.Log.Error("drop undecodable notification", "action", "relay_bad_payload", "event_id", env.EventID, "error", err)
		return nil
	}
	if err := r.Sink.Send(ctx, n); err != nil {
		// let a redelivery try again
		if rerr := r.Dedup.Release(ctx, env.EventID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	return nil
}
