package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const est = "est-1"

func newLedger(t *testing.T, stock int) (*inventory.Ledger, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutProduct(orders.Product{ID: "p1", EstablishmentID: est, Name: "Soup", Price: decimal.NewFromInt(5), Stock: stock}, orders.DefaultStockPolicy)
	return inventory.NewLedger(st, orders.DefaultStockPolicy), st
}

func TestCheck_InsufficientStock(t *testing.T) {
	l, st := newLedger(t, 3)
	ctx := context.Background()

	_, err := l.Check(ctx, est, "p1", 5)

	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 5, ise.Requested)
	assert.Equal(t, 3, ise.Available)

	p, err := st.GetProduct(ctx, est, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock, "check never writes")
}

func TestCheck_UnknownProduct(t *testing.T) {
	l, _ := newLedger(t, 3)
	_, err := l.Check(context.Background(), est, "nope", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestConsumeAndRestock_TrackLevels(t *testing.T) {
	l, _ := newLedger(t, 16)
	ctx := context.Background()

	c, err := l.Consume(ctx, est, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 15, c.Product.Stock)
	assert.Equal(t, orders.StockGood, c.Previous)
	assert.Equal(t, orders.StockMedium, c.Product.StockLevel)
	assert.True(t, c.LevelChanged())

	c, err = l.Consume(ctx, est, "p1", 15)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Product.Stock)
	assert.Equal(t, orders.StockOut, c.Product.StockLevel)

	c, err = l.Restock(ctx, est, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Product.Stock)
	assert.Equal(t, orders.StockLow, c.Product.StockLevel)
	assert.Equal(t, orders.StockOut, c.Previous)
}

func TestConsume_NeverGoesNegative(t *testing.T) {
	l, st := newLedger(t, 3)
	ctx := context.Background()

	_, err := l.Consume(ctx, est, "p1", 4)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	p, _ := st.GetProduct(ctx, est, "p1")
	assert.Equal(t, 3, p.Stock)
}

func TestConsume_RacingForLastUnits(t *testing.T) {
	l, st := newLedger(t, 5)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Consume(ctx, est, "p1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	p, _ := st.GetProduct(ctx, est, "p1")
	assert.Equal(t, 0, p.Stock)
}

func TestApplyDelta_ZeroReadsOnly(t *testing.T) {
	l, _ := newLedger(t, 7)
	c, err := l.ApplyDelta(context.Background(), est, "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Product.Stock)
	assert.False(t, c.LevelChanged())
}
