package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/engine"
	"github.com/ariefcatur/go-realtime-pos/internal/locks"
	"github.com/ariefcatur/go-realtime-pos/internal/logging"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/notify"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	est      = "est-1"
	estNoTax = "est-2"
)

var (
	waiter  = orders.Actor{ID: "w1", Role: orders.RoleWaiter, EstablishmentID: est}
	kitchen = orders.Actor{ID: "k1", Role: orders.RoleKitchen, EstablishmentID: est}
	cashier = orders.Actor{ID: "c1", Role: orders.RoleCashier, EstablishmentID: est}
	manager = orders.Actor{ID: "m1", Role: orders.RoleManager, EstablishmentID: est}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

type notifications struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (n *notifications) Emit(x notify.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, x)
	return true
}

func (n *notifications) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.got...)
}

type events struct {
	mu  sync.Mutex
	got []orders.Envelope
}

func (e *events) PublishEvent(_ context.Context, env orders.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, env)
	return nil
}

func (e *events) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.got))
	for _, env := range e.got {
		out = append(out, env.EventType)
	}
	return out
}

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memstore.Store
	notes  *notifications
	events *events
	svc    *engine.Service
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func seed(st *memstore.Store) {
	st.SetTaxRate(est, decimal.NewFromInt(10))
	for _, p := range []orders.Product{
		{ID: "burger", EstablishmentID: est, Name: "Burger", Price: dec("10.00"), Stock: 20},
		{ID: "fries", EstablishmentID: est, Name: "Fries", Price: dec("4.50"), Stock: 3},
		{ID: "pie", EstablishmentID: est, Name: "Pie", Price: dec("2.00"), Stock: 2},
		{ID: "soup", EstablishmentID: estNoTax, Name: "Soup", Price: dec("10.00"), Stock: 10},
	} {
		st.PutProduct(p, orders.DefaultStockPolicy)
	}
	st.PutTable(orders.Table{ID: "t1", EstablishmentID: est, Label: "12"})
	st.PutTable(orders.Table{ID: "t2", EstablishmentID: est, Label: "14"})
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	seed(s.store)
	s.notes = &notifications{}
	s.events = &events{}
	s.svc = engine.New(s.store, locks.NewLocal(time.Second), engine.Config{ServiceName: "test"},
		engine.WithNotifier(s.notes),
		engine.WithEvents(s.events),
		engine.WithLogger(logging.Discard()),
	)
}

func (s *EngineSuite) create(tableID string, items ...orders.ItemInput) orders.OrderView {
	v, err := s.svc.CreateOrder(s.ctx, waiter, orders.CreateOrderInput{TableID: tableID, WaiterID: waiter.ID, Items: items})
	s.Require().NoError(err)
	return v
}

func (s *EngineSuite) get(orderID string) orders.OrderView {
	v, err := s.svc.GetOrder(s.ctx, waiter, orderID)
	s.Require().NoError(err)
	return v
}

func (s *EngineSuite) stock(productID string) int {
	p, err := s.store.GetProduct(s.ctx, est, productID)
	s.Require().NoError(err)
	return p.Stock
}

func (s *EngineSuite) table(tableID string) orders.Table {
	t, err := s.store.GetTable(s.ctx, est, tableID)
	s.Require().NoError(err)
	return t
}

func (s *EngineSuite) setStatus(orderID, itemID string, to orders.ItemStatus) {
	_, err := s.svc.UpdateItemStatus(s.ctx, kitchen, orderID, itemID, orders.ItemStatusInput{Status: to})
	s.Require().NoError(err)
}

// ---- scenarios ----

func (s *EngineSuite) TestCreateThenPayInFull() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 2})

	s.Equal("20.00", v.Order.Subtotal.StringFixed(2))
	s.Equal("2.00", v.Order.Tax.StringFixed(2))
	s.Equal("22.00", v.Order.Total.StringFixed(2))
	s.Equal(orders.StatusPending, v.Order.Status)
	s.Require().Len(v.Items, 1)
	s.Equal("Burger", v.Items[0].ProductName)
	s.Len(v.History, 1)
	s.Equal(18, s.stock("burger"))
	s.Equal(orders.TableOccupied, s.table("t1").Status)
	s.Equal(v.Order.ID, s.table("t1").CurrentOrderID)

	p, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "card", Amount: dec("22.00")})
	s.Require().NoError(err)
	s.Equal("c1", p.ProcessedBy)

	got := s.get(v.Order.ID)
	s.Equal(orders.StatusPaid, got.Order.Status)
	s.NotNil(got.Order.PaidAt)
	s.Equal("22.00", got.Order.PaidAmount.StringFixed(2))
	s.Equal(orders.TableAvailable, s.table("t1").Status)
	s.Empty(s.table("t1").CurrentOrderID)
	s.Equal(string(orders.StatusPaid), got.History[len(got.History)-1].NewStatus)

	s.Contains(s.events.types(), orders.EventOrderCreated)
	s.Contains(s.events.types(), orders.EventPaymentApplied)
}

func (s *EngineSuite) TestCreateRejectsInsufficientStock() {
	_, err := s.svc.CreateOrder(s.ctx, waiter, orders.CreateOrderInput{
		TableID:  "t1",
		WaiterID: waiter.ID,
		Items:    []orders.ItemInput{{ProductID: "fries", Quantity: 5}},
	})

	var ise *orders.InsufficientStockError
	s.Require().ErrorAs(err, &ise)
	s.Equal(5, ise.Requested)
	s.Equal(3, ise.Available)
	s.Equal(3, s.stock("fries"))
	s.Equal(orders.TableAvailable, s.table("t1").Status)
	s.Empty(s.events.types())
}

func (s *EngineSuite) TestCreateSumsRepeatedProducts() {
	_, err := s.svc.CreateOrder(s.ctx, waiter, orders.CreateOrderInput{
		WaiterID: waiter.ID,
		Items: []orders.ItemInput{
			{ProductID: "fries", Quantity: 2},
			{ProductID: "fries", Quantity: 2},
		},
	})
	s.ErrorIs(err, orders.ErrInsufficientStock)
	s.Equal(3, s.stock("fries"))
}

func (s *EngineSuite) TestOverpaymentLeavesPaidAmount() {
	other := orders.Actor{ID: "w9", Role: orders.RoleWaiter, EstablishmentID: estNoTax}
	v, err := s.svc.CreateOrder(s.ctx, other, orders.CreateOrderInput{WaiterID: "w9", Items: []orders.ItemInput{{ProductID: "soup", Quantity: 1}}})
	s.Require().NoError(err)
	s.Equal("10.00", v.Order.Total.StringFixed(2), "no configured rate falls back to the default")

	_, err = s.svc.ApplyPayment(s.ctx, other, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("15.00")})

	var ope *orders.OverpaymentError
	s.Require().ErrorAs(err, &ope)
	s.Equal("10.00", ope.Remaining.StringFixed(2))
	got, err := s.svc.GetOrder(s.ctx, other, v.Order.ID)
	s.Require().NoError(err)
	s.True(got.Order.PaidAmount.IsZero())
	s.Empty(got.Payments)
}

func (s *EngineSuite) TestItemReadyNotifiesOnce() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 2})
	itemID := v.Items[0].ID

	s.setStatus(v.Order.ID, itemID, orders.ItemInPreparation)
	s.Equal(orders.StatusPreparing, s.get(v.Order.ID).Order.Status)
	s.setStatus(v.Order.ID, itemID, orders.ItemReady)
	s.setStatus(v.Order.ID, itemID, orders.ItemReady)

	got := s.get(v.Order.ID)
	s.Require().NotNil(got.Items[0].StartedAt)
	s.Require().NotNil(got.Items[0].CompletedAt)
	s.Equal(orders.StatusReadyForServing, got.Order.Status)

	sent := s.notes.all()
	s.Require().Len(sent, 1)
	s.Equal("Burger", sent[0].Data["item_name"])
	s.Equal(2, sent[0].Data["quantity"])
	s.Equal("12", sent[0].Data["table"])
}

func (s *EngineSuite) TestConcurrentQuantityIncrementsRespectStock() {
	v := s.create("", orders.ItemInput{ProductID: "pie", Quantity: 1})
	s.Require().Equal(1, s.stock("pie"))

	errs := incrementConcurrently(s.ctx, s.svc, v.Order.ID, v.Items[0].ID)

	s.Equal(1, countNil(errs))
	for _, err := range errs {
		if err != nil {
			s.ErrorIs(err, orders.ErrInsufficientStock)
		}
	}
	s.Equal(0, s.stock("pie"))
	s.Equal(2, s.get(v.Order.ID).Items[0].Quantity)
}

func (s *EngineSuite) TestVoidReopensPaidOrder() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})
	p, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("11.00")})
	s.Require().NoError(err)
	s.Require().Equal(orders.StatusPaid, s.get(v.Order.ID).Order.Status)

	voided, err := s.svc.VoidPayment(s.ctx, manager, v.Order.ID, p.ID, "wrong card")
	s.Require().NoError(err)
	s.True(voided.Voided)
	s.Equal("m1", voided.VoidedBy)

	got := s.get(v.Order.ID)
	s.Equal(orders.StatusPending, got.Order.Status)
	s.Nil(got.Order.PaidAt)
	s.True(got.Order.PaidAmount.IsZero())
	s.Equal(orders.TableOccupied, s.table("t1").Status, "re-opened order is re-seated")

	_, err = s.svc.VoidPayment(s.ctx, manager, v.Order.ID, p.ID, "again")
	s.ErrorIs(err, orders.ErrInvalidState)
}

func (s *EngineSuite) TestVoidLeavesOrderUnseatedWhenTableTaken() {
	first := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})
	p, err := s.svc.ApplyPayment(s.ctx, cashier, first.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("11.00")})
	s.Require().NoError(err)
	second := s.create("t1", orders.ItemInput{ProductID: "fries", Quantity: 1})

	_, err = s.svc.VoidPayment(s.ctx, manager, first.Order.ID, p.ID, "chargeback")
	s.Require().NoError(err)

	got := s.get(first.Order.ID)
	s.Equal(orders.StatusPending, got.Order.Status)
	s.Empty(got.Order.TableID, "re-opened order does not claim a table held by another order")
	s.Equal(second.Order.ID, s.table("t1").CurrentOrderID)

	moved, err := s.svc.UpdateOrder(s.ctx, waiter, first.Order.ID, orders.OrderPatch{TableID: ptr("t2")})
	s.Require().NoError(err)
	s.Equal("t2", moved.Order.TableID)
	s.Equal(second.Order.ID, s.table("t1").CurrentOrderID)
	s.Equal(first.Order.ID, s.table("t2").CurrentOrderID)
}

// ---- privileges ----

func (s *EngineSuite) TestPrivilegedOperations() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})
	p, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("5.00")})
	s.Require().NoError(err)

	_, err = s.svc.VoidPayment(s.ctx, cashier, v.Order.ID, p.ID, "oops")
	s.ErrorIs(err, orders.ErrForbidden)

	_, err = s.svc.VoidPayment(s.ctx, manager, v.Order.ID, p.ID, "")
	s.ErrorIs(err, orders.ErrValidation)

	_, err = s.svc.UpdateOrder(s.ctx, waiter, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusCancelled)})
	s.ErrorIs(err, orders.ErrForbidden)

	s.ErrorIs(s.svc.DeleteOrder(s.ctx, waiter, v.Order.ID), orders.ErrForbidden)

	_, err = s.svc.GetOrder(s.ctx, orders.Actor{ID: "x", Role: orders.RoleAdmin, EstablishmentID: "other"}, v.Order.ID)
	s.ErrorIs(err, orders.ErrNotFound)

	_, err = s.svc.GetOrder(s.ctx, orders.Actor{EstablishmentID: est}, v.Order.ID)
	s.ErrorIs(err, orders.ErrValidation)
}

// ---- items ----

func (s *EngineSuite) TestAddItems() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})

	added, err := s.svc.AddItems(s.ctx, waiter, v.Order.ID, []orders.ItemInput{{ProductID: "fries", Quantity: 2, Modifications: []string{"extra salt"}}})
	s.Require().NoError(err)
	s.Require().Len(added, 1)
	s.Equal(orders.ItemPending, added[0].Status)

	got := s.get(v.Order.ID)
	s.Len(got.Items, 2)
	s.Equal("19.00", got.Order.Subtotal.StringFixed(2))
	s.Equal("20.90", got.Order.Total.StringFixed(2))
	s.Equal(1, s.stock("fries"))

	_, err = s.svc.AddItems(s.ctx, waiter, v.Order.ID, []orders.ItemInput{{ProductID: "fries", Quantity: 2}})
	s.ErrorIs(err, orders.ErrInsufficientStock)
	s.Len(s.get(v.Order.ID).Items, 2)
}

func (s *EngineSuite) TestUpdateItemQuantityMovesStock() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 2})
	itemID := v.Items[0].ID

	it, err := s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, itemID, orders.ItemPatch{Quantity: ptr(5), Notes: ptr("well done")})
	s.Require().NoError(err)
	s.Equal(5, it.Quantity)
	s.Equal("50.00", it.Subtotal.StringFixed(2))
	s.Equal(15, s.stock("burger"))

	_, err = s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, itemID, orders.ItemPatch{QuantityDelta: ptr(-4)})
	s.Require().NoError(err)
	s.Equal(19, s.stock("burger"))
	s.Equal("11.00", s.get(v.Order.ID).Order.Total.StringFixed(2))
}

func (s *EngineSuite) TestUpdateItemRejectsEditsOnFinishedItems() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1}, orders.ItemInput{ProductID: "pie", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[0].ID, orders.ItemDelivered)

	_, err := s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, v.Items[0].ID, orders.ItemPatch{Quantity: ptr(2)})
	s.ErrorIs(err, orders.ErrInvalidState)

	_, err = s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, v.Items[1].ID, orders.ItemPatch{Quantity: ptr(2), Status: ptr(orders.ItemCancelled)})
	s.ErrorIs(err, orders.ErrValidation)
}

func (s *EngineSuite) TestCancelPendingItemThroughPatchRestocks() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 3}, orders.ItemInput{ProductID: "pie", Quantity: 1})

	it, err := s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, v.Items[0].ID, orders.ItemPatch{Status: ptr(orders.ItemCancelled), Reason: ptr("guest changed mind")})
	s.Require().NoError(err)
	s.Equal(orders.ItemCancelled, it.Status)
	s.Equal("guest changed mind", it.CancellationReason)
	s.Equal(20, s.stock("burger"))
	s.Equal("2.20", s.get(v.Order.ID).Order.Total.StringFixed(2))
}

func (s *EngineSuite) TestRemovePendingItemDeletesAndRestocks() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 2}, orders.ItemInput{ProductID: "fries", Quantity: 1})

	s.Require().NoError(s.svc.RemoveItem(s.ctx, waiter, v.Order.ID, v.Items[1].ID))

	got := s.get(v.Order.ID)
	s.Len(got.Items, 1)
	s.Equal(3, s.stock("fries"))
	s.Equal("22.00", got.Order.Total.StringFixed(2))
	s.Contains(s.events.types(), orders.EventItemRemoved)
}

func (s *EngineSuite) TestRemoveStartedItemCancelsWithoutRestock() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 2}, orders.ItemInput{ProductID: "fries", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[1].ID, orders.ItemInPreparation)

	s.Require().NoError(s.svc.RemoveItem(s.ctx, waiter, v.Order.ID, v.Items[1].ID))

	got := s.get(v.Order.ID)
	s.Require().Len(got.Items, 2)
	s.Equal(orders.ItemCancelled, got.Items[1].Status)
	s.NotNil(got.Items[1].CancelledAt)
	s.Equal(2, s.stock("fries"))
	s.Equal("22.00", got.Order.Total.StringFixed(2))

	s.ErrorIs(s.svc.RemoveItem(s.ctx, waiter, v.Order.ID, v.Items[1].ID), orders.ErrInvalidState)
}

func (s *EngineSuite) TestRemoveDeliveredItemRejected() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1}, orders.ItemInput{ProductID: "pie", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[0].ID, orders.ItemDelivered)

	err := s.svc.RemoveItem(s.ctx, waiter, v.Order.ID, v.Items[0].ID)
	s.ErrorIs(err, orders.ErrInvalidState)
}

func (s *EngineSuite) TestDeliveringEveryItemServesOrder() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1}, orders.ItemInput{ProductID: "pie", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[0].ID, orders.ItemDelivered)
	s.Equal(orders.StatusPreparing, s.get(v.Order.ID).Order.Status)

	s.setStatus(v.Order.ID, v.Items[1].ID, orders.ItemDelivered)
	got := s.get(v.Order.ID)
	s.Equal(orders.StatusServed, got.Order.Status)
	s.NotNil(got.Order.DeliveredAt)
}

// ---- payments against totals ----

func (s *EngineSuite) TestTotalCannotDropBelowPaid() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 2})
	_, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("20.00")})
	s.Require().NoError(err)

	_, err = s.svc.UpdateItem(s.ctx, waiter, v.Order.ID, v.Items[0].ID, orders.ItemPatch{Quantity: ptr(1)})
	s.ErrorIs(err, orders.ErrInvalidState)
	s.Equal(18, s.stock("burger"))
}

func (s *EngineSuite) TestRemovingItemCanSettleOrder() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1}, orders.ItemInput{ProductID: "fries", Quantity: 1})
	s.Require().Equal("15.95", v.Order.Total.StringFixed(2))
	_, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("11.00")})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveItem(s.ctx, waiter, v.Order.ID, v.Items[1].ID))

	got := s.get(v.Order.ID)
	s.Equal(orders.StatusPaid, got.Order.Status)
	s.Equal(orders.TableAvailable, s.table("t1").Status)
}

func (s *EngineSuite) TestClosedOrdersRejectMutations() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1})
	_, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("11.00")})
	s.Require().NoError(err)

	_, err = s.svc.AddItems(s.ctx, waiter, v.Order.ID, []orders.ItemInput{{ProductID: "pie", Quantity: 1}})
	s.ErrorIs(err, orders.ErrInvalidState)
	_, err = s.svc.UpdateItemStatus(s.ctx, kitchen, v.Order.ID, v.Items[0].ID, orders.ItemStatusInput{Status: orders.ItemReady})
	s.ErrorIs(err, orders.ErrInvalidState)
	_, err = s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("1.00")})
	s.ErrorIs(err, orders.ErrOverpayment)
}

// ---- order level ----

func (s *EngineSuite) TestTableAlreadyTaken() {
	s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})

	_, err := s.svc.CreateOrder(s.ctx, waiter, orders.CreateOrderInput{TableID: "t1", WaiterID: waiter.ID, Items: []orders.ItemInput{{ProductID: "pie", Quantity: 1}}})
	s.ErrorIs(err, orders.ErrInvalidState)
	s.Equal(2, s.stock("pie"))
}

func (s *EngineSuite) TestMoveTable() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 1})

	got, err := s.svc.UpdateOrder(s.ctx, waiter, v.Order.ID, orders.OrderPatch{TableID: ptr("t2"), Notes: ptr("window seat")})
	s.Require().NoError(err)
	s.Equal("t2", got.Order.TableID)
	s.Equal("window seat", got.Order.Notes)
	s.Equal(orders.TableAvailable, s.table("t1").Status)
	s.Equal(v.Order.ID, s.table("t2").CurrentOrderID)
}

func (s *EngineSuite) TestCancelOrder() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 2}, orders.ItemInput{ProductID: "fries", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[0].ID, orders.ItemInPreparation)

	got, err := s.svc.UpdateOrder(s.ctx, manager, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusCancelled), Reason: ptr("guest left")})
	s.Require().NoError(err)

	s.Equal(orders.StatusCancelled, got.Order.Status)
	s.Equal("guest left", got.Order.CancellationReason)
	s.Equal("m1", got.Order.CancelledBy)
	s.True(got.Order.Total.IsZero())
	for _, it := range got.Items {
		s.Equal(orders.ItemCancelled, it.Status)
	}
	s.Equal(18, s.stock("burger"), "started items keep their stock consumed")
	s.Equal(3, s.stock("fries"))
	s.Equal(orders.TableAvailable, s.table("t1").Status)

	_, err = s.svc.UpdateOrder(s.ctx, manager, v.Order.ID, orders.OrderPatch{Notes: ptr("late note")})
	s.ErrorIs(err, orders.ErrInvalidState)
}

func (s *EngineSuite) TestCancelOrderWithPaymentsRejected() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1})
	_, err := s.svc.ApplyPayment(s.ctx, cashier, v.Order.ID, orders.PaymentInput{MethodID: "cash", Amount: dec("5.00")})
	s.Require().NoError(err)

	_, err = s.svc.UpdateOrder(s.ctx, manager, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusCancelled)})
	s.ErrorIs(err, orders.ErrInvalidState)
	s.Equal(orders.StatusPending, s.get(v.Order.ID).Order.Status)
}

func (s *EngineSuite) TestStatusCannotMoveBackwards() {
	v := s.create("", orders.ItemInput{ProductID: "burger", Quantity: 1})
	_, err := s.svc.UpdateOrder(s.ctx, waiter, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusServed)})
	s.Require().NoError(err)

	_, err = s.svc.UpdateOrder(s.ctx, waiter, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusPreparing)})
	s.ErrorIs(err, orders.ErrInvalidState)

	_, err = s.svc.UpdateOrder(s.ctx, manager, v.Order.ID, orders.OrderPatch{Status: ptr(orders.StatusPaid), TableID: ptr("t2")})
	s.ErrorIs(err, orders.ErrValidation)
}

func (s *EngineSuite) TestDeleteOrder() {
	v := s.create("t1", orders.ItemInput{ProductID: "burger", Quantity: 2}, orders.ItemInput{ProductID: "fries", Quantity: 1})
	s.setStatus(v.Order.ID, v.Items[0].ID, orders.ItemInPreparation)

	s.Require().NoError(s.svc.DeleteOrder(s.ctx, manager, v.Order.ID))

	_, err := s.svc.GetOrder(s.ctx, waiter, v.Order.ID)
	s.ErrorIs(err, orders.ErrNotFound)
	s.Equal(3, s.stock("fries"))
	s.Equal(18, s.stock("burger"))
	s.Equal(orders.TableAvailable, s.table("t1").Status)
	s.Contains(s.events.types(), orders.EventOrderDeleted)
}

func (s *EngineSuite) TestStockLevelEvents() {
	s.create("", orders.ItemInput{ProductID: "fries", Quantity: 3})
	s.Contains(s.events.types(), orders.EventStockLevelChanged)

	p, err := s.store.GetProduct(s.ctx, est, "fries")
	s.Require().NoError(err)
	s.Equal(orders.StockOut, p.StockLevel)
}
