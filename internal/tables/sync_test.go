package tables_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-realtime-pos/internal/logging"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const est = "est-1"

func setup(t *testing.T, status orders.TableStatus) (*tables.Sync, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutTable(orders.Table{ID: "t1", EstablishmentID: est, Label: "12", Status: status})
	return tables.NewSync(st, logging.Discard()), st
}

func table(t *testing.T, st *memstore.Store) orders.Table {
	t.Helper()
	tb, err := st.GetTable(context.Background(), est, "t1")
	require.NoError(t, err)
	return tb
}

func TestOccupyAndRelease(t *testing.T) {
	s, st := setup(t, orders.TableAvailable)
	ctx := context.Background()

	_, err := s.EnsureSeatable(ctx, est, "t1", "o1")
	require.NoError(t, err)
	require.NoError(t, s.OnOrderCreated(ctx, est, "t1", "o1"))
	assert.Equal(t, orders.TableOccupied, table(t, st).Status)
	assert.Equal(t, "o1", table(t, st).CurrentOrderID)

	require.NoError(t, s.OnOrderTerminal(ctx, est, "t1", "o1"))
	assert.Equal(t, orders.TableAvailable, table(t, st).Status)
	assert.Empty(t, table(t, st).CurrentOrderID)

	// idempotent
	require.NoError(t, s.OnOrderTerminal(ctx, est, "t1", "o1"))
	assert.Equal(t, orders.TableAvailable, table(t, st).Status)
}

func TestEnsureSeatable_Rejections(t *testing.T) {
	s, _ := setup(t, orders.TableOutOfService)
	_, err := s.EnsureSeatable(context.Background(), est, "t1", "o1")
	assert.ErrorIs(t, err, orders.ErrInvalidState)

	_, err = s.EnsureSeatable(context.Background(), est, "missing", "o1")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestOnOrderCreated_TakenTable(t *testing.T) {
	s, _ := setup(t, orders.TableAvailable)
	ctx := context.Background()
	require.NoError(t, s.OnOrderCreated(ctx, est, "t1", "o1"))

	err := s.OnOrderCreated(ctx, est, "t1", "o2")
	assert.ErrorIs(t, err, orders.ErrConflict)
}

func TestOnOrderTerminal_LeavesOtherOrdersTable(t *testing.T) {
	s, st := setup(t, orders.TableAvailable)
	ctx := context.Background()
	require.NoError(t, s.OnOrderCreated(ctx, est, "t1", "o2"))

	require.NoError(t, s.OnOrderTerminal(ctx, est, "t1", "o1"))
	assert.Equal(t, "o2", table(t, st).CurrentOrderID)

	require.NoError(t, s.OnOrderTerminal(ctx, est, "", "o1"))
}

func TestReseat(t *testing.T) {
	s, st := setup(t, orders.TableAvailable)
	ctx := context.Background()

	ok, err := s.Reseat(ctx, est, "t1", "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o1", table(t, st).CurrentOrderID)

	ok, err = s.Reseat(ctx, est, "t1", "o2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "o1", table(t, st).CurrentOrderID)

	ok, err = s.Reseat(ctx, est, "", "o2")
	require.NoError(t, err)
	assert.False(t, ok)
}
