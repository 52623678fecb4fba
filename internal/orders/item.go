package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCancellationReason = "cancelled by staff"

// NewItem snapshots the product price; UnitPrice never changes afterwards.
func NewItem(id, orderID string, p Product, in ItemInput, now time.Time) Item {
	it := Item{
		ID:            id,
		OrderID:       orderID,
		ProductID:     p.ID,
		ProductName:   p.Name,
		UnitPrice:     p.Price,
		Notes:         in.Notes,
		Modifications: append([]string(nil), in.Modifications...),
		Status:        ItemPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	it.SetQuantity(in.Quantity, now)
	return it
}

func (it *Item) SetQuantity(q int, now time.Time) {
	it.Quantity = q
	it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
	it.UpdatedAt = now
}

// Transition moves the item to status `to` and stamps lifecycle timestamps.
// It returns false without touching the item when it is already in `to`.
func (it *Item) Transition(to ItemStatus, actorID, reason string, now time.Time) (bool, error) {
	if !to.Valid() {
		return false, Invalid("status", "unknown item status "+string(to))
	}
	if it.Status == ItemCancelled {
		return false, InvalidState("item", it.ID, string(it.Status), "item is cancelled")
	}
	if it.Status == to {
		return false, nil
	}
	if !CanTransitionItem(it.Status, to) {
		return false, InvalidState("item", it.ID, string(it.Status), "cannot move to "+string(to))
	}

	stamp := func(p **time.Time) {
		if *p == nil {
			t := now
			*p = &t
		}
	}
	switch to {
	case ItemInPreparation:
		stamp(&it.StartedAt)
	case ItemReady:
		stamp(&it.StartedAt)
		stamp(&it.CompletedAt)
	case ItemDelivered:
		stamp(&it.StartedAt)
		stamp(&it.CompletedAt)
		stamp(&it.DeliveredAt)
	case ItemCancelled:
		stamp(&it.CancelledAt)
		it.CancelledBy = actorID
		if reason == "" {
			reason = DefaultCancellationReason
		}
		it.CancellationReason = reason
	}
	it.Status = to
	it.UpdatedAt = now
	return true, nil
}
