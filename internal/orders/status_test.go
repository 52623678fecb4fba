package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(statuses ...ItemStatus) []Item {
	out := make([]Item, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Item{Status: s})
	}
	return out
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusServed))
	assert.True(t, CanTransition(StatusServed, StatusPaid))
	assert.False(t, CanTransition(StatusServed, StatusPreparing))
	assert.False(t, CanTransition(StatusPaid, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition("bogus", StatusPaid))
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		items   []Item
		want    Status
	}{
		{"all pending", StatusPending, items(ItemPending, ItemPending), StatusPending},
		{"one started", StatusPending, items(ItemInPreparation, ItemPending), StatusPreparing},
		{"all ready", StatusPending, items(ItemReady, ItemDelivered), StatusReadyForServing},
		{"all delivered", StatusPreparing, items(ItemDelivered, ItemDelivered), StatusServed},
		{"cancelled items ignored", StatusPending, items(ItemDelivered, ItemCancelled), StatusServed},
		{"no live items keeps current", StatusPreparing, items(ItemCancelled), StatusPreparing},
		{"never moves backwards", StatusReadyForServing, items(ItemReady, ItemPending), StatusReadyForServing},
		{"terminal is sticky", StatusPaid, items(ItemPending), StatusPaid},
		{"cancelled is sticky", StatusCancelled, items(ItemDelivered), StatusCancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.current, tc.items))
		})
	}
}

func TestItemTransition_StampsTimestamps(t *testing.T) {
	it := NewItem("i1", "o1", product("p1", "5.00", 10), ItemInput{ProductID: "p1", Quantity: 1}, t0)

	changed, err := it.Transition(ItemInPreparation, "cook", "", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, it.StartedAt)
	assert.Nil(t, it.CompletedAt)

	changed, err = it.Transition(ItemReady, "cook", "", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, it.CompletedAt)
	assert.Equal(t, t0.Add(time.Minute), *it.StartedAt, "started_at is not overwritten")
	assert.Equal(t, t0.Add(2*time.Minute), *it.CompletedAt)
}

func TestItemTransition_SkipForwardStampsEarlierSteps(t *testing.T) {
	it := NewItem("i1", "o1", product("p1", "5.00", 10), ItemInput{ProductID: "p1", Quantity: 1}, t0)

	_, err := it.Transition(ItemDelivered, "w1", "", t0)
	require.NoError(t, err)
	assert.NotNil(t, it.StartedAt)
	assert.NotNil(t, it.CompletedAt)
	assert.NotNil(t, it.DeliveredAt)
}

func TestItemTransition_SameStatusIsNoop(t *testing.T) {
	it := NewItem("i1", "o1", product("p1", "5.00", 10), ItemInput{ProductID: "p1", Quantity: 1}, t0)

	changed, err := it.Transition(ItemPending, "w1", "", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, t0, it.UpdatedAt)
}

func TestItemTransition_Rejections(t *testing.T) {
	it := NewItem("i1", "o1", product("p1", "5.00", 10), ItemInput{ProductID: "p1", Quantity: 1}, t0)
	_, err := it.Transition(ItemReady, "cook", "", t0)
	require.NoError(t, err)

	_, err = it.Transition(ItemPending, "cook", "", t0)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = it.Transition("burnt", "cook", "", t0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = it.Transition(ItemCancelled, "mgr", "", t0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCancellationReason, it.CancellationReason)
	assert.Equal(t, "mgr", it.CancelledBy)

	_, err = it.Transition(ItemCancelled, "mgr", "", t0)
	assert.ErrorIs(t, err, ErrInvalidState)
}
