// Package notify raises staff notifications as a best-effort side effect of
// order mutations. Delivery to screens and devices happens elsewhere.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/google/uuid"
)

const (
	ChannelKitchen   = "kitchen"
	ChannelWaitstaff = "waitstaff"
)

type Notification struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

var readyNamespace = uuid.MustParse("6f1c7b0e-5d2a-4c11-9a53-7f0e2b8d4a10")

// ItemReady builds the notification for an item that reached "ready". The ID is
// derived from the item so repeated emissions can be deduplicated downstream.
func ItemReady(o orders.Order, tableLabel string, it orders.Item, now time.Time) Notification {
	msg := fmt.Sprintf("%dx %s is ready", it.Quantity, it.ProductName)
	if tableLabel != "" {
		msg = fmt.Sprintf("%dx %s is ready for table %s", it.Quantity, it.ProductName, tableLabel)
	}
	data := map[string]any{
		"order_id":     o.ID,
		"order_number": o.Number,
		"item_id":      it.ID,
		"item_name":    it.ProductName,
		"quantity":     it.Quantity,
	}
	if o.TableID != "" {
		data["table_id"] = o.TableID
		data["table"] = tableLabel
	}
	return Notification{
		ID:        uuid.NewSHA1(readyNamespace, []byte(it.ID+":ready")).String(),
		Channel:   ChannelWaitstaff,
		Title:     "Order " + o.Number + " item ready",
		Message:   msg,
		Data:      data,
		CreatedAt: now,
	}
}
