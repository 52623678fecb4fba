package engine

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/saga"
)

// UpdateOrder edits order attributes, reassigns the table or moves the order
// status forward. Moving to paid or cancelled needs a manager or admin and
// releases the table.
func (s *Service) UpdateOrder(ctx context.Context, actor orders.Actor, orderID string, patch orders.OrderPatch) (orders.OrderView, error) {
	if err := checkActor(actor); err != nil {
		return orders.OrderView{}, err
	}
	if err := patch.Validate(); err != nil {
		return orders.OrderView{}, err
	}
	if patch.Status != nil && patch.Status.RequiresPrivilege() && !actor.Privileged() {
		return orders.OrderView{}, orders.Forbidden(actor, "mark orders "+string(*patch.Status))
	}
	if patch.Status != nil && patch.Status.Terminal() && patch.TableID != nil {
		return orders.OrderView{}, orders.Invalid("table_id", "cannot reassign the table while closing the order")
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.OrderView, error) {
		now := s.now()
		est := actor.EstablishmentID
		o, err := s.loadOpen(ctx, actor, orderID)
		if err != nil {
			return orders.OrderView{}, err
		}

		next := o
		next.UpdatedAt = now
		if patch.WaiterID != nil {
			next.WaiterID = *patch.WaiterID
		}
		if patch.CustomerID != nil {
			next.CustomerID = *patch.CustomerID
		}
		if patch.Notes != nil {
			next.Notes = *patch.Notes
		}

		var steps []saga.Step
		if patch.TableID != nil && *patch.TableID != o.TableID {
			if *patch.TableID != "" {
				if _, err := s.tables.EnsureSeatable(ctx, est, *patch.TableID, o.ID); err != nil {
					return orders.OrderView{}, err
				}
				steps = append(steps, s.occupyStep(est, *patch.TableID, o.ID))
			}
			if o.TableID != "" {
				steps = append(steps, s.releaseStep(est, o.TableID, o.ID))
			}
			next.TableID = *patch.TableID
		}

		var changes []inventory.Change
		if to := deref(patch.Status); to != "" && to != o.Status {
			if !orders.CanTransition(o.Status, to) {
				return orders.OrderView{}, orders.InvalidState("order", o.ID, string(o.Status), "cannot move to "+string(to))
			}
			reason := deref(patch.Reason)
			next.Status = to
			switch to {
			case orders.StatusCancelled:
				cancelSteps, err := s.cancelOrder(ctx, o, &next, actor, reason, &changes)
				if err != nil {
					return orders.OrderView{}, err
				}
				steps = append(steps, cancelSteps...)
			case orders.StatusPaid:
				t := now
				next.PaidAt = &t
			case orders.StatusServed:
				if next.DeliveredAt == nil {
					t := now
					next.DeliveredAt = &t
				}
			}
			steps = append(steps, s.statusStep(s.orderChange(o, o.Status, to, actor, reason, now)))
			if to.Terminal() {
				steps = append(steps, s.releaseStep(est, o.TableID, o.ID))
			}
		}

		// order row first so the item and table steps are undone after it
		steps = append([]saga.Step{s.saveOrderStep(next, o)}, steps...)
		sg := saga.New("update_order", s.log)
		for _, st := range steps {
			if err := sg.Run(ctx, st); err != nil {
				return orders.OrderView{}, sg.Abort(ctx, err)
			}
		}
		v, err := s.view(ctx, next)
		if err != nil {
			return orders.OrderView{}, sg.Abort(ctx, err)
		}
		sg.Commit()

		s.log.Info("order updated", "action", "order_updated", "order_id", o.ID, "status", next.Status, "table_id", next.TableID)
		s.raiseOrder(fx, orders.EventOrderUpdated, next, actor, nil)
		s.raiseStock(fx, o.ID, changes)
		return v, nil
	})
}

// cancelOrder prepares the steps that cancel every unfinished item of o and
// updates next with the resulting totals. Pending items return their stock.
// Orders with payments still applied cannot be cancelled.
func (s *Service) cancelOrder(ctx context.Context, o orders.Order, next *orders.Order, actor orders.Actor, reason string, changes *[]inventory.Change) ([]saga.Step, error) {
	if o.PaidAmount.IsPositive() {
		return nil, orders.InvalidState("order", o.ID, string(o.Status), "void applied payments before cancelling")
	}
	now := next.UpdatedAt
	items, err := s.store.ListItems(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	var steps []saga.Step
	final := make([]orders.Item, 0, len(items))
	for _, prev := range items {
		if prev.Status.Terminal() {
			final = append(final, prev)
			continue
		}
		it := cloneItem(prev)
		if _, err := it.Transition(orders.ItemCancelled, actor.ID, reason, now); err != nil {
			return nil, err
		}
		final = append(final, it)
		steps = append(steps, s.saveItemStep(it, prev))
		if prev.Status == orders.ItemPending {
			steps = append(steps, s.stockStep(o.EstablishmentID, it.ProductID, it.Quantity, changes))
		}
		steps = append(steps, s.statusStep(s.itemChange(it, prev.Status, actor, "order cancelled", now)))
	}

	next.ApplyTotals(orders.ComputeTotals(final, o.TaxRate))
	next.CancelledAt = &now
	next.CancelledBy = actor.ID
	next.CancellationReason = reason
	if next.CancellationReason == "" {
		next.CancellationReason = orders.DefaultCancellationReason
	}
	return steps, nil
}

// DeleteOrder removes an order with its items, payments and history. The table
// is released and stock of items not yet in preparation is returned.
func (s *Service) DeleteOrder(ctx context.Context, actor orders.Actor, orderID string) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	if !actor.Privileged() {
		return orders.Forbidden(actor, "delete orders")
	}

	_, err := locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (struct{}, error) {
		est := actor.EstablishmentID
		o, err := s.loadOrder(ctx, actor, orderID)
		if err != nil {
			return struct{}{}, err
		}
		items, err := s.store.ListItems(ctx, o.ID)
		if err != nil {
			return struct{}{}, fmt.Errorf("list items: %w", err)
		}

		var changes []inventory.Change
		var steps []saga.Step
		if o.TableID != "" {
			steps = append(steps, s.releaseStep(est, o.TableID, o.ID))
		}
		for _, it := range items {
			if it.Status == orders.ItemPending {
				steps = append(steps, s.stockStep(est, it.ProductID, it.Quantity, &changes))
			}
		}
		steps = append(steps, saga.Step{
			Name: "delete order",
			Do:   func(ctx context.Context) error { return s.store.DeleteOrder(ctx, est, o.ID) },
		})
		if err := saga.New("delete_order", s.log).Execute(ctx, steps...); err != nil {
			return struct{}{}, err
		}

		s.log.Info("order deleted", "action", "order_deleted", "order_id", o.ID, "order_number", o.Number)
		s.raiseOrder(fx, orders.EventOrderDeleted, o, actor, nil)
		s.raiseStock(fx, o.ID, changes)
		return struct{}{}, nil
	})
	return err
}
