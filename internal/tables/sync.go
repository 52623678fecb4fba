package tables

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
)

type Store interface {
	GetTable(ctx context.Context, establishmentID, tableID string) (orders.Table, error)
	// OccupyTable marks the table occupied by orderID when it is seatable for it.
	OccupyTable(ctx context.Context, establishmentID, tableID, orderID string) (bool, error)
	// ReleaseTable frees the table only if it is held by orderID or by nobody.
	ReleaseTable(ctx context.Context, establishmentID, tableID, orderID string) (bool, error)
}

// Sync keeps a table's occupancy in step with the order seated at it.
type Sync struct {
	store Store
	log   *slog.Logger
}

func NewSync(store Store, log *slog.Logger) *Sync {
	return &Sync{store: store, log: log}
}

// EnsureSeatable is the read-only validation run before any write.
func (s *Sync) EnsureSeatable(ctx context.Context, establishmentID, tableID, orderID string) (orders.Table, error) {
	t, err := s.store.GetTable(ctx, establishmentID, tableID)
	if err != nil {
		return orders.Table{}, fmt.Errorf("load table: %w", err)
	}
	if !t.Seatable(orderID) {
		return t, orders.InvalidState("table", t.ID, string(t.Status), "table is not available")
	}
	return t, nil
}

func (s *Sync) OnOrderCreated(ctx context.Context, establishmentID, tableID, orderID string) error {
	ok, err := s.store.OccupyTable(ctx, establishmentID, tableID, orderID)
	if err != nil {
		return fmt.Errorf("occupy table: %w", err)
	}
	if !ok {
		return orders.Conflict("table:"+tableID, "table was taken by another order")
	}
	return nil
}

// OnOrderTerminal frees the table. Releasing an already free table, or one that
// has since been seated with a different order, is a no-op.
func (s *Sync) OnOrderTerminal(ctx context.Context, establishmentID, tableID, orderID string) error {
	if tableID == "" {
		return nil
	}
	ok, err := s.store.ReleaseTable(ctx, establishmentID, tableID, orderID)
	if err != nil {
		return fmt.Errorf("release table: %w", err)
	}
	if !ok {
		s.log.Debug("table release skipped", "action", "table_release_noop", "table_id", tableID, "order_id", orderID)
	}
	return nil
}

// Reseat tries to occupy the table again for a re-opened order. It reports false
// when the table is no longer free; the caller then leaves the order without a seat.
func (s *Sync) Reseat(ctx context.Context, establishmentID, tableID, orderID string) (bool, error) {
	if tableID == "" {
		return false, nil
	}
	ok, err := s.store.OccupyTable(ctx, establishmentID, tableID, orderID)
	if err != nil {
		return false, fmt.Errorf("reseat table: %w", err)
	}
	if !ok {
		s.log.Info("table no longer free for re-opened order", "action", "table_reseat_skipped", "table_id", tableID, "order_id", orderID)
	}
	return ok, nil
}
