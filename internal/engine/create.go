package engine

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/saga"
	"github.com/shopspring/decimal"
)

// CreateOrder opens an order, consumes stock for its items and seats the table.
// Table availability and stock are checked before anything is written.
func (s *Service) CreateOrder(ctx context.Context, actor orders.Actor, in orders.CreateOrderInput) (orders.OrderView, error) {
	if err := checkActor(actor); err != nil {
		return orders.OrderView{}, err
	}
	if err := in.Validate(); err != nil {
		return orders.OrderView{}, err
	}
	orderID := s.newID()

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.OrderView, error) {
		est := actor.EstablishmentID
		now := s.now()

		if in.TableID != "" {
			if _, err := s.tables.EnsureSeatable(ctx, est, in.TableID, orderID); err != nil {
				return orders.OrderView{}, err
			}
		}
		products, err := s.checkStock(ctx, est, in.Items)
		if err != nil {
			return orders.OrderView{}, err
		}
		rate, err := s.taxRate(ctx, est)
		if err != nil {
			return orders.OrderView{}, err
		}

		o := orders.Order{
			ID:              orderID,
			Number:          orders.NewOrderNumber(now, orderID),
			EstablishmentID: est,
			TableID:         in.TableID,
			WaiterID:        in.WaiterID,
			CustomerID:      in.CustomerID,
			Status:          orders.StatusPending,
			Subtotal:        decimal.Zero,
			Tax:             decimal.Zero,
			TaxRate:         rate,
			Total:           decimal.Zero,
			PaidAmount:      decimal.Zero,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		items := make([]orders.Item, 0, len(in.Items))
		for _, ii := range in.Items {
			items = append(items, orders.NewItem(s.newID(), orderID, products[ii.ProductID], ii, now))
		}
		priced := o
		priced.ApplyTotals(orders.ComputeTotals(items, rate))

		var changes []inventory.Change
		sg := saga.New("create_order", s.log)
		if err := sg.Run(ctx, s.insertOrderStep(o)); err != nil {
			return orders.OrderView{}, sg.Abort(ctx, err)
		}
		for _, it := range items {
			if err := sg.Run(ctx, s.insertItemStep(it)); err != nil {
				return orders.OrderView{}, sg.Abort(ctx, err)
			}
			if err := sg.Run(ctx, s.stockStep(est, it.ProductID, -it.Quantity, &changes)); err != nil {
				return orders.OrderView{}, sg.Abort(ctx, err)
			}
		}
		steps := []saga.Step{s.saveOrderStep(priced, o)}
		if o.TableID != "" {
			steps = append(steps, s.occupyStep(est, o.TableID, o.ID))
		}
		steps = append(steps, s.statusStep(s.orderChange(o, "", orders.StatusPending, actor, in.Notes, now)))
		for _, st := range steps {
			if err := sg.Run(ctx, st); err != nil {
				return orders.OrderView{}, sg.Abort(ctx, err)
			}
		}

		v, err := s.view(ctx, priced)
		if err != nil {
			return orders.OrderView{}, sg.Abort(ctx, err)
		}
		sg.Commit()

		s.log.Info("order created", "action", "order_created", "order_id", o.ID, "order_number", o.Number,
			"table_id", o.TableID, "items", len(items), "total", priced.Total.StringFixed(2))
		s.raiseOrder(fx, orders.EventOrderCreated, priced, actor, nil)
		s.raiseStock(fx, o.ID, changes)
		return v, nil
	})
}

// AddItems appends items to an open order.
func (s *Service) AddItems(ctx context.Context, actor orders.Actor, orderID string, in []orders.ItemInput) ([]orders.Item, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := orders.ValidateItemInputs(in); err != nil {
		return nil, err
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) ([]orders.Item, error) {
		est := actor.EstablishmentID
		now := s.now()

		o, err := s.loadOpen(ctx, actor, orderID)
		if err != nil {
			return nil, err
		}
		current, err := s.store.ListItems(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		products, err := s.checkStock(ctx, est, in)
		if err != nil {
			return nil, err
		}

		added := make([]orders.Item, 0, len(in))
		for _, ii := range in {
			added = append(added, orders.NewItem(s.newID(), o.ID, products[ii.ProductID], ii, now))
		}
		next := o
		next.ApplyTotals(orders.ComputeTotals(append(current, added...), o.TaxRate))
		next.UpdatedAt = now

		var changes []inventory.Change
		var steps []saga.Step
		for _, it := range added {
			steps = append(steps, s.insertItemStep(it), s.stockStep(est, it.ProductID, -it.Quantity, &changes))
		}
		steps = append(steps, s.saveOrderStep(next, o))
		if err := saga.New("add_items", s.log).Execute(ctx, steps...); err != nil {
			return nil, err
		}

		s.log.Info("items added", "action", "order_items_added", "order_id", o.ID, "items", len(added), "total", next.Total.StringFixed(2))
		s.raiseOrder(fx, orders.EventItemsAdded, next, actor, nil)
		s.raiseStock(fx, o.ID, changes)
		return added, nil
	})
}
