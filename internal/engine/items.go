package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/notify"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/payments"
	"github.com/ariefcatur/go-realtime-pos/internal/saga"
	"github.com/shopspring/decimal"
)

// UpdateItem applies a patch to one item. Quantity changes move stock by the
// difference; a status in the patch follows the item status machine.
func (s *Service) UpdateItem(ctx context.Context, actor orders.Actor, orderID, itemID string, patch orders.ItemPatch) (orders.Item, error) {
	if err := checkActor(actor); err != nil {
		return orders.Item{}, err
	}
	if err := patch.Validate(); err != nil {
		return orders.Item{}, err
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.Item, error) {
		now := s.now()
		o, err := s.loadOpen(ctx, actor, orderID)
		if err != nil {
			return orders.Item{}, err
		}
		prev, err := s.loadItem(ctx, o.ID, itemID)
		if err != nil {
			return orders.Item{}, err
		}
		it := cloneItem(prev)

		q, qtyChanged, err := patch.ResolveQuantity(it.Quantity)
		if err != nil {
			return orders.Item{}, err
		}
		detailsChanged := qtyChanged || patch.Notes != nil || patch.Modifications != nil
		if detailsChanged && it.Status.Terminal() {
			return orders.Item{}, orders.InvalidState("item", it.ID, string(it.Status), "item can no longer be edited")
		}
		if qtyChanged && deref(patch.Status) == orders.ItemCancelled {
			return orders.Item{}, orders.Invalid("quantity", "cannot change quantity while cancelling the item")
		}
		if qtyChanged {
			it.SetQuantity(q, now)
		}
		if patch.Notes != nil {
			it.Notes = *patch.Notes
			it.UpdatedAt = now
		}
		if patch.Modifications != nil {
			it.Modifications = append([]string(nil), (*patch.Modifications)...)
			it.UpdatedAt = now
		}
		statusChanged := false
		if patch.Status != nil {
			statusChanged, err = it.Transition(*patch.Status, actor.ID, deref(patch.Reason), now)
			if err != nil {
				return orders.Item{}, err
			}
		}
		if !detailsChanged && !statusChanged {
			return it, nil
		}

		event := orders.EventItemUpdated
		if statusChanged && !detailsChanged {
			event = orders.EventItemStatusChanged
		}
		return s.commitItemChange(ctx, fx, actor, o, prev, it, itemCommit{
			statusChanged: statusChanged,
			notes:         deref(patch.Reason),
			event:         event,
			now:           now,
		})
	})
}

// UpdateItemStatus moves an item through its status machine. Requesting the
// current status is a no-op.
func (s *Service) UpdateItemStatus(ctx context.Context, actor orders.Actor, orderID, itemID string, in orders.ItemStatusInput) (orders.Item, error) {
	if err := checkActor(actor); err != nil {
		return orders.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return orders.Item{}, err
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.Item, error) {
		now := s.now()
		o, err := s.loadOpen(ctx, actor, orderID)
		if err != nil {
			return orders.Item{}, err
		}
		prev, err := s.loadItem(ctx, o.ID, itemID)
		if err != nil {
			return orders.Item{}, err
		}
		it := cloneItem(prev)
		changed, err := it.Transition(in.Status, actor.ID, in.Reason, now)
		if err != nil {
			return orders.Item{}, err
		}
		if !changed {
			return it, nil
		}
		return s.commitItemChange(ctx, fx, actor, o, prev, it, itemCommit{
			statusChanged: true,
			notes:         in.Notes,
			event:         orders.EventItemStatusChanged,
			now:           now,
		})
	})
}

// RemoveItem hard-deletes a pending item and returns its stock. An item whose
// preparation has started is cancelled instead and its stock is not returned.
// Delivered items cannot be removed.
func (s *Service) RemoveItem(ctx context.Context, actor orders.Actor, orderID, itemID string) error {
	if err := checkActor(actor); err != nil {
		return err
	}

	_, err := locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (struct{}, error) {
		now := s.now()
		o, err := s.loadOpen(ctx, actor, orderID)
		if err != nil {
			return struct{}{}, err
		}
		prev, err := s.loadItem(ctx, o.ID, itemID)
		if err != nil {
			return struct{}{}, err
		}

		switch prev.Status {
		case orders.ItemDelivered:
			return struct{}{}, orders.InvalidState("item", prev.ID, string(prev.Status), "delivered items cannot be removed")
		case orders.ItemCancelled:
			return struct{}{}, orders.InvalidState("item", prev.ID, string(prev.Status), "item is already cancelled")
		case orders.ItemPending:
			return struct{}{}, s.deletePending(ctx, fx, actor, o, prev, now)
		}

		it := cloneItem(prev)
		if _, err := it.Transition(orders.ItemCancelled, actor.ID, "", now); err != nil {
			return struct{}{}, err
		}
		_, err = s.commitItemChange(ctx, fx, actor, o, prev, it, itemCommit{
			statusChanged: true,
			notes:         "removed after preparation started",
			event:         orders.EventItemRemoved,
			now:           now,
		})
		return struct{}{}, err
	})
	return err
}

func (s *Service) deletePending(ctx context.Context, fx *effects, actor orders.Actor, o orders.Order, it orders.Item, now time.Time) error {
	items, err := s.store.ListItems(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	remaining := withoutItem(items, it.ID)
	next, err := s.recomputed(o, remaining, now)
	if err != nil {
		return err
	}

	var changes []inventory.Change
	sg := saga.New("remove_item", s.log)
	steps := []saga.Step{
		s.deleteItemStep(it),
		s.stockStep(o.EstablishmentID, it.ProductID, it.Quantity, &changes),
		s.saveOrderStep(next, o),
	}
	steps = append(steps, s.derivedSteps(o, next, actor, now)...)
	if err := sg.Execute(ctx, steps...); err != nil {
		return err
	}
	s.log.Info("item removed", "action", "order_item_removed", "order_id", o.ID, "item_id", it.ID, "restocked", it.Quantity)
	s.raiseOrder(fx, orders.EventItemRemoved, next, actor, func(p *orders.OrderEventPayload) { p.ItemID = it.ID })
	s.raiseStock(fx, o.ID, changes)
	return nil
}

type itemCommit struct {
	statusChanged bool
	notes         string
	event         string
	now           time.Time
}

// recomputed returns o with totals and derived status for items. A change that
// would leave the total below what has already been paid is rejected.
func (s *Service) recomputed(o orders.Order, items []orders.Item, now time.Time) (orders.Order, error) {
	next := o
	next.ApplyTotals(orders.ComputeTotals(items, o.TaxRate))
	if next.Total.LessThan(o.PaidAmount) {
		return o, orders.InvalidState("order", o.ID, string(o.Status),
			fmt.Sprintf("total %s would fall below paid amount %s", next.Total.StringFixed(2), o.PaidAmount.StringFixed(2)))
	}
	next.Status = orders.DeriveStatus(o.Status, items)
	if next.Status == orders.StatusServed && next.DeliveredAt == nil {
		t := now
		next.DeliveredAt = &t
	}
	next.UpdatedAt = now
	if o.PaidAmount.IsPositive() {
		payments.Settle(&next, decimal.Zero, now)
	}
	return next, nil
}

// derivedSteps logs an order status that moved as a consequence of an item
// change, releasing the table when that move closed the order.
func (s *Service) derivedSteps(o, next orders.Order, actor orders.Actor, now time.Time) []saga.Step {
	if next.Status == o.Status {
		return nil
	}
	steps := []saga.Step{s.statusStep(s.orderChange(o, o.Status, next.Status, actor, "derived from item statuses", now))}
	if next.Status.Terminal() {
		steps = append(steps, s.releaseStep(o.EstablishmentID, o.TableID, o.ID))
	}
	return steps
}

// commitItemChange persists prev -> it with the stock delta, totals and derived
// order status that follow from it.
func (s *Service) commitItemChange(ctx context.Context, fx *effects, actor orders.Actor, o orders.Order, prev, it orders.Item, c itemCommit) (orders.Item, error) {
	est := o.EstablishmentID
	items, err := s.store.ListItems(ctx, o.ID)
	if err != nil {
		return orders.Item{}, fmt.Errorf("list items: %w", err)
	}
	next, err := s.recomputed(o, replaceItem(items, it), c.now)
	if err != nil {
		return orders.Item{}, err
	}

	// negative delta consumes stock, positive returns it
	delta := 0
	switch {
	case it.Status.Live():
		delta = prev.Quantity - it.Quantity
	case prev.Status == orders.ItemPending:
		delta = prev.Quantity
	}
	if delta < 0 {
		if _, err := s.stock.Check(ctx, est, it.ProductID, -delta); err != nil {
			return orders.Item{}, err
		}
	}

	var changes []inventory.Change
	steps := []saga.Step{s.saveItemStep(it, prev)}
	if delta != 0 {
		steps = append(steps, s.stockStep(est, it.ProductID, delta, &changes))
	}
	steps = append(steps, s.saveOrderStep(next, o))
	if c.statusChanged {
		steps = append(steps, s.statusStep(s.itemChange(it, prev.Status, actor, c.notes, c.now)))
	}
	steps = append(steps, s.derivedSteps(o, next, actor, c.now)...)
	if err := saga.New("update_item", s.log).Execute(ctx, steps...); err != nil {
		return orders.Item{}, err
	}

	s.log.Info("item updated", "action", "order_item_updated", "order_id", o.ID, "item_id", it.ID,
		"item_status", it.Status, "quantity", it.Quantity, "stock_delta", delta, "order_status", next.Status)
	s.raiseOrder(fx, c.event, next, actor, func(p *orders.OrderEventPayload) {
		p.ItemID = it.ID
		p.ItemStatus = string(it.Status)
	})
	s.raiseStock(fx, o.ID, changes)
	if c.statusChanged && it.Status == orders.ItemReady {
		fx.notifications = append(fx.notifications, notify.ItemReady(next, s.tableLabel(ctx, o), it, c.now))
	}
	return it, nil
}
