package inventory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
)

// ProductStore is the narrow persistence contract the ledger needs.
type ProductStore interface {
	GetProduct(ctx context.Context, establishmentID, productID string) (orders.Product, error)
	// AdjustStock adds delta to the product's stock only when the result stays >= 0,
	// persisting the level classified by policy in the same write. When applied is
	// false the returned product carries the unchanged current stock.
	AdjustStock(ctx context.Context, establishmentID, productID string, delta int, policy orders.StockPolicy) (p orders.Product, applied bool, err error)
}

type Ledger struct {
	Store  ProductStore
	Policy orders.StockPolicy
}

func NewLedger(store ProductStore, policy orders.StockPolicy) *Ledger {
	return &Ledger{Store: store, Policy: policy}
}

// Change is the outcome of one applied delta.
type Change struct {
	Product  orders.Product
	Delta    int
	Previous orders.StockLevel
}

func (c Change) LevelChanged() bool { return c.Previous != c.Product.StockLevel }

// Check reads the product and verifies that qty units are available without writing.
func (l *Ledger) Check(ctx context.Context, establishmentID, productID string, qty int) (orders.Product, error) {
	p, err := l.Store.GetProduct(ctx, establishmentID, productID)
	if err != nil {
		return orders.Product{}, fmt.Errorf("load product: %w", err)
	}
	if p.Stock < qty {
		return p, &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	return p, nil
}

// ApplyDelta consumes (negative) or restocks (positive) units of a product.
// The sufficiency check and the write are one conditional update, so two orders
// racing for the last units cannot both succeed.
func (l *Ledger) ApplyDelta(ctx context.Context, establishmentID, productID string, delta int) (Change, error) {
	if delta == 0 {
		p, err := l.Store.GetProduct(ctx, establishmentID, productID)
		if err != nil {
			return Change{}, fmt.Errorf("load product: %w", err)
		}
		return Change{Product: p, Previous: p.StockLevel}, nil
	}

	p, applied, err := l.Store.AdjustStock(ctx, establishmentID, productID, delta, l.Policy)
	if err != nil {
		return Change{}, fmt.Errorf("adjust stock: %w", err)
	}
	if !applied {
		return Change{}, &orders.InsufficientStockError{ProductID: productID, Requested: -delta, Available: p.Stock}
	}
	return Change{
		Product:  p,
		Delta:    delta,
		Previous: l.Policy.Classify(p.Stock - delta),
	}, nil
}

func (l *Ledger) Consume(ctx context.Context, establishmentID, productID string, qty int) (Change, error) {
	return l.ApplyDelta(ctx, establishmentID, productID, -qty)
}

func (l *Ledger) Restock(ctx context.Context, establishmentID, productID string, qty int) (Change, error) {
	return l.ApplyDelta(ctx, establishmentID, productID, qty)
}
