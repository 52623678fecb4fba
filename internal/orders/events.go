package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventItemsAdded         = "OrderItemsAdded"
	EventItemUpdated        = "OrderItemUpdated"
	EventItemRemoved        = "OrderItemRemoved"
	EventItemStatusChanged  = "OrderItemStatusChanged"
	EventPaymentApplied     = "PaymentApplied"
	EventPaymentVoided      = "PaymentVoided"
	EventOrderUpdated       = "OrderUpdated"
	EventOrderDeleted       = "OrderDeleted"
	EventStockLevelChanged  = "StockLevelChanged"
	EventNotificationRaised = "NotificationRaised"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderEventPayload struct {
	OrderID         string `json:"order_id"`
	OrderNumber     string `json:"order_number"`
	EstablishmentID string `json:"establishment_id"`
	Status          string `json:"status"`
	Subtotal        string `json:"subtotal"`
	Tax             string `json:"tax"`
	Total           string `json:"total"`
	PaidAmount      string `json:"paid_amount"`
	ActorID         string `json:"actor_id"`
	ItemID          string `json:"item_id,omitempty"`
	PaymentID       string `json:"payment_id,omitempty"`
	ItemStatus      string `json:"item_status,omitempty"`
}

func NewOrderEventPayload(o Order, actorID string) OrderEventPayload {
	return OrderEventPayload{
		OrderID:         o.ID,
		OrderNumber:     o.Number,
		EstablishmentID: o.EstablishmentID,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		PaidAmount:      o.PaidAmount.StringFixed(2),
		ActorID:         actorID,
	}
}

type StockLevelPayload struct {
	ProductID       string `json:"product_id"`
	EstablishmentID string `json:"establishment_id"`
	Stock           int    `json:"stock"`
	Previous        string `json:"previous_level"`
	Level           string `json:"level"`
}
