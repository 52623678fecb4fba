package engine

import (
	"context"
	"slices"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/saga"
)

// Saga step builders shared by the operations. Each pairs a write with the
// write that undoes it.

func (s *Service) insertOrderStep(o orders.Order) saga.Step {
	return saga.Step{
		Name: "insert order",
		Do:   func(ctx context.Context) error { return s.store.InsertOrder(ctx, o) },
		Undo: func(ctx context.Context) error { return s.store.DeleteOrder(ctx, o.EstablishmentID, o.ID) },
	}
}

func (s *Service) saveOrderStep(next, prev orders.Order) saga.Step {
	return saga.Step{
		Name: "save order",
		Do:   func(ctx context.Context) error { return s.store.SaveOrder(ctx, next) },
		Undo: func(ctx context.Context) error { return s.store.SaveOrder(ctx, prev) },
	}
}

func (s *Service) insertItemStep(it orders.Item) saga.Step {
	return saga.Step{
		Name: "insert item " + it.ID,
		Do:   func(ctx context.Context) error { return s.store.InsertItem(ctx, it) },
		Undo: func(ctx context.Context) error { return s.store.DeleteItem(ctx, it.OrderID, it.ID) },
	}
}

func (s *Service) saveItemStep(next, prev orders.Item) saga.Step {
	return saga.Step{
		Name: "save item " + next.ID,
		Do:   func(ctx context.Context) error { return s.store.SaveItem(ctx, next) },
		Undo: func(ctx context.Context) error { return s.store.SaveItem(ctx, prev) },
	}
}

func (s *Service) deleteItemStep(it orders.Item) saga.Step {
	return saga.Step{
		Name: "delete item " + it.ID,
		Do:   func(ctx context.Context) error { return s.store.DeleteItem(ctx, it.OrderID, it.ID) },
		Undo: func(ctx context.Context) error { return s.store.InsertItem(ctx, it) },
	}
}

// stockStep applies delta to a product and records the change for events.
func (s *Service) stockStep(establishmentID, productID string, delta int, changes *[]inventory.Change) saga.Step {
	return saga.Step{
		Name: "adjust stock " + productID,
		Do: func(ctx context.Context) error {
			c, err := s.stock.ApplyDelta(ctx, establishmentID, productID, delta)
			if err != nil {
				return err
			}
			*changes = append(*changes, c)
			return nil
		},
		Undo: func(ctx context.Context) error {
			_, err := s.stock.ApplyDelta(ctx, establishmentID, productID, -delta)
			return err
		},
	}
}

func (s *Service) statusStep(c orders.StatusChange) saga.Step {
	return saga.Step{
		Name: "log status " + c.NewStatus,
		Do:   func(ctx context.Context) error { return s.store.AppendStatusChange(ctx, c) },
		Undo: func(ctx context.Context) error { return s.store.DeleteStatusChange(ctx, c.OrderID, c.ID) },
	}
}

func (s *Service) occupyStep(establishmentID, tableID, orderID string) saga.Step {
	return saga.Step{
		Name: "occupy table " + tableID,
		Do:   func(ctx context.Context) error { return s.tables.OnOrderCreated(ctx, establishmentID, tableID, orderID) },
		Undo: func(ctx context.Context) error { return s.tables.OnOrderTerminal(ctx, establishmentID, tableID, orderID) },
	}
}

// releaseStep frees the table. Undo re-seats only if nobody took the table since.
func (s *Service) releaseStep(establishmentID, tableID, orderID string) saga.Step {
	return saga.Step{
		Name: "release table " + tableID,
		Do:   func(ctx context.Context) error { return s.tables.OnOrderTerminal(ctx, establishmentID, tableID, orderID) },
		Undo: func(ctx context.Context) error {
			_, err := s.tables.Reseat(ctx, establishmentID, tableID, orderID)
			return err
		},
	}
}

// reseatStep seats a re-opened order at its table again. When another order took
// the table meanwhile, o keeps no table.
func (s *Service) reseatStep(o *orders.Order) saga.Step {
	est, tableID, orderID := o.EstablishmentID, o.TableID, o.ID
	seated := false
	return saga.Step{
		Name: "reseat table " + tableID,
		Do: func(ctx context.Context) (err error) {
			seated, err = s.tables.Reseat(ctx, est, tableID, orderID)
			if err != nil {
				return err
			}
			if !seated {
				o.TableID = ""
			}
			return nil
		},
		Undo: func(ctx context.Context) error {
			if !seated {
				return nil
			}
			return s.tables.OnOrderTerminal(ctx, est, tableID, orderID)
		},
	}
}

func (s *Service) orderChange(o orders.Order, from, to orders.Status, actor orders.Actor, notes string, now time.Time) orders.StatusChange {
	return orders.StatusChange{
		ID:             s.newID(),
		OrderID:        o.ID,
		PreviousStatus: string(from),
		NewStatus:      string(to),
		ChangedBy:      actor.ID,
		Notes:          notes,
		CreatedAt:      now,
	}
}

func (s *Service) itemChange(it orders.Item, from orders.ItemStatus, actor orders.Actor, notes string, now time.Time) orders.StatusChange {
	return orders.StatusChange{
		ID:             s.newID(),
		OrderID:        it.OrderID,
		ItemID:         it.ID,
		PreviousStatus: string(from),
		NewStatus:      string(it.Status),
		ChangedBy:      actor.ID,
		Notes:          notes,
		CreatedAt:      now,
	}
}

// replaceItem returns a copy of items with the entry for it.ID swapped for it.
func replaceItem(items []orders.Item, it orders.Item) []orders.Item {
	out := slices.Clone(items)
	for i := range out {
		if out[i].ID == it.ID {
			out[i] = it
		}
	}
	return out
}

func withoutItem(items []orders.Item, itemID string) []orders.Item {
	return slices.DeleteFunc(slices.Clone(items), func(it orders.Item) bool { return it.ID == itemID })
}

// cloneItem copies the item including its modifications slice.
func cloneItem(it orders.Item) orders.Item {
	it.Modifications = slices.Clone(it.Modifications)
	return it
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
