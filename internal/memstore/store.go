// Package memstore is an in-process store for development and tests. Values are
// copied in and out so callers never share memory with the store.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu       sync.Mutex
	taxRates map[string]decimal.Decimal
	products map[string]orders.Product
	tables   map[string]orders.Table
	orders   map[string]orders.Order
	items    map[string]orders.Item
	payments map[string]orders.Payment
	changes  []orders.StatusChange
	seq      map[string]int64 // insertion order of items and payments
	next     int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		taxRates: map[string]decimal.Decimal{},
		products: map[string]orders.Product{},
		tables:   map[string]orders.Table{},
		orders:   map[string]orders.Order{},
		items:    map[string]orders.Item{},
		payments: map[string]orders.Payment{},
		seq:      map[string]int64{},
		now:      time.Now,
	}
}

func (s *Store) SetTaxRate(establishmentID string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxRates[establishmentID] = rate
}

// PutProduct inserts or replaces a product, classifying its level with policy.
func (s *Store) PutProduct(p orders.Product, policy orders.StockPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.StockLevel = policy.Classify(p.Stock)
	s.products[p.ID] = p
}

func (s *Store) PutTable(t orders.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = orders.TableAvailable
	}
	s.tables[t.ID] = t
}

func (s *Store) TaxRate(_ context.Context, establishmentID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.taxRates[establishmentID]
	if !ok {
		return decimal.Zero, orders.NotFound("establishment", establishmentID)
	}
	return r, nil
}

// products

func (s *Store) GetProduct(_ context.Context, establishmentID, productID string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.EstablishmentID != establishmentID {
		return orders.Product{}, orders.NotFound("product", productID)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, establishmentID string) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Product
	for _, p := range s.products {
		if p.EstablishmentID == establishmentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AdjustStock(_ context.Context, establishmentID, productID string, delta int, policy orders.StockPolicy) (orders.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.EstablishmentID != establishmentID {
		return orders.Product{}, false, orders.NotFound("product", productID)
	}
	if p.Stock+delta < 0 {
		return p, false, nil
	}
	p.Stock += delta
	p.StockLevel = policy.Classify(p.Stock)
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return p, true, nil
}

// tables

func (s *Store) GetTable(_ context.Context, establishmentID, tableID string) (orders.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok || t.EstablishmentID != establishmentID {
		return orders.Table{}, orders.NotFound("table", tableID)
	}
	return t, nil
}

func (s *Store) OccupyTable(_ context.Context, establishmentID, tableID, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok || t.EstablishmentID != establishmentID {
		return false, orders.NotFound("table", tableID)
	}
	if !t.Seatable(orderID) {
		return false, nil
	}
	t.Status = orders.TableOccupied
	t.CurrentOrderID = orderID
	t.UpdatedAt = s.now()
	s.tables[tableID] = t
	return true, nil
}

func (s *Store) ReleaseTable(_ context.Context, establishmentID, tableID, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok || t.EstablishmentID != establishmentID {
		return false, orders.NotFound("table", tableID)
	}
	if t.Status != orders.TableOccupied || (t.CurrentOrderID != orderID && t.CurrentOrderID != "") {
		return false, nil
	}
	t.Status = orders.TableAvailable
	t.CurrentOrderID = ""
	t.UpdatedAt = s.now()
	s.tables[tableID] = t
	return true, nil
}

// orders

func (s *Store) InsertOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return orders.Conflict("order:"+o.ID, "order already exists")
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(_ context.Context, establishmentID, orderID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.EstablishmentID != establishmentID {
		return orders.Order{}, orders.NotFound("order", orderID)
	}
	return o, nil
}

func (s *Store) SaveOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok || cur.EstablishmentID != o.EstablishmentID {
		return orders.NotFound("order", o.ID)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, establishmentID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.EstablishmentID != establishmentID {
		return orders.NotFound("order", orderID)
	}
	delete(s.orders, orderID)
	for id, it := range s.items {
		if it.OrderID == orderID {
			delete(s.items, id)
			delete(s.seq, id)
		}
	}
	for id, p := range s.payments {
		if p.OrderID == orderID {
			delete(s.payments, id)
			delete(s.seq, id)
		}
	}
	s.changes = slices.DeleteFunc(s.changes, func(c orders.StatusChange) bool { return c.OrderID == orderID })
	return nil
}

// items

func copyItem(it orders.Item) orders.Item {
	it.Modifications = slices.Clone(it.Modifications)
	return it
}

func (s *Store) InsertItem(_ context.Context, it orders.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[it.OrderID]; !ok {
		return orders.NotFound("order", it.OrderID)
	}
	s.items[it.ID] = copyItem(it)
	s.stamp(it.ID)
	return nil
}

func (s *Store) stamp(id string) {
	if _, ok := s.seq[id]; !ok {
		s.next++
		s.seq[id] = s.next
	}
}

func (s *Store) GetItem(_ context.Context, orderID, itemID string) (orders.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok || it.OrderID != orderID {
		return orders.Item{}, orders.NotFound("item", itemID)
	}
	return copyItem(it), nil
}

func (s *Store) ListItems(_ context.Context, orderID string) ([]orders.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Item
	for _, it := range s.items {
		if it.OrderID == orderID {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out, nil
}

func (s *Store) SaveItem(_ context.Context, it orders.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[it.ID]
	if !ok || cur.OrderID != it.OrderID {
		return orders.NotFound("item", it.ID)
	}
	s.items[it.ID] = copyItem(it)
	return nil
}

func (s *Store) DeleteItem(_ context.Context, orderID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[itemID]; ok && it.OrderID == orderID {
		delete(s.items, itemID)
		delete(s.seq, itemID)
	}
	return nil
}

// payments

func (s *Store) InsertPayment(_ context.Context, p orders.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[p.OrderID]; !ok {
		return orders.NotFound("order", p.OrderID)
	}
	s.payments[p.ID] = p
	s.stamp(p.ID)
	return nil
}

func (s *Store) GetPayment(_ context.Context, establishmentID, orderID, paymentID string) (orders.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.OrderID != orderID || p.EstablishmentID != establishmentID {
		return orders.Payment{}, orders.NotFound("payment", paymentID)
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, orderID string) ([]orders.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out, nil
}

func (s *Store) MarkPaymentVoided(_ context.Context, p orders.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok {
		return false, orders.NotFound("payment", p.ID)
	}
	if cur.Voided {
		return false, nil
	}
	cur.Voided = true
	cur.VoidedBy = p.VoidedBy
	cur.VoidReason = p.VoidReason
	cur.VoidedAt = p.VoidedAt
	cur.UpdatedAt = p.UpdatedAt
	s.payments[p.ID] = cur
	return true, nil
}

func (s *Store) UnvoidPayment(_ context.Context, p orders.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok {
		return orders.NotFound("payment", p.ID)
	}
	cur.Voided = false
	cur.VoidedBy = ""
	cur.VoidReason = ""
	cur.VoidedAt = nil
	cur.UpdatedAt = p.UpdatedAt
	s.payments[p.ID] = cur
	return nil
}

// status log

func (s *Store) AppendStatusChange(_ context.Context, c orders.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
	return nil
}

func (s *Store) DeleteStatusChange(_ context.Context, orderID, changeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = slices.DeleteFunc(s.changes, func(c orders.StatusChange) bool {
		return c.ID == changeID && c.OrderID == orderID
	})
	return nil
}

func (s *Store) ListStatusChanges(_ context.Context, orderID string) ([]orders.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.StatusChange
	for _, c := range s.changes {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}
