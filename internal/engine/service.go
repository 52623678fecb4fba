// Package engine sequences every order mutation under a per-order lock. Each
// operation validates before writing, runs its writes as a saga so a failure
// part way through is compensated, and dispatches notifications and domain
// events only after the lock is released.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/locks"
	"github.com/ariefcatur/go-realtime-pos/internal/notify"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/payments"
	"github.com/ariefcatur/go-realtime-pos/internal/tables"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is everything the engine persists. orders.Repo and memstore.Store implement it.
type Store interface {
	inventory.ProductStore
	payments.Store
	tables.Store

	InsertOrder(ctx context.Context, o orders.Order) error
	GetOrder(ctx context.Context, establishmentID, orderID string) (orders.Order, error)
	SaveOrder(ctx context.Context, o orders.Order) error
	DeleteOrder(ctx context.Context, establishmentID, orderID string) error

	InsertItem(ctx context.Context, it orders.Item) error
	GetItem(ctx context.Context, orderID, itemID string) (orders.Item, error)
	ListItems(ctx context.Context, orderID string) ([]orders.Item, error)
	SaveItem(ctx context.Context, it orders.Item) error
	DeleteItem(ctx context.Context, orderID, itemID string) error

	ListPayments(ctx context.Context, orderID string) ([]orders.Payment, error)

	AppendStatusChange(ctx context.Context, c orders.StatusChange) error
	DeleteStatusChange(ctx context.Context, orderID, changeID string) error
	ListStatusChanges(ctx context.Context, orderID string) ([]orders.StatusChange, error)

	// TaxRate returns ErrNotFound when the establishment has no configured rate.
	TaxRate(ctx context.Context, establishmentID string) (decimal.Decimal, error)
}

type Notifier interface {
	Emit(n notify.Notification) bool
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, env orders.Envelope) error
}

// ViewCache holds rendered order views. A nil Get result is a miss. The engine
// only writes and invalidates entries while it holds the order's lock.
type ViewCache interface {
	Get(ctx context.Context, establishmentID, orderID string) ([]byte, error)
	Set(ctx context.Context, establishmentID, orderID string, body []byte) error
	Invalidate(ctx context.Context, establishmentID, orderID string) error
}

type Config struct {
	ServiceName    string
	DefaultTaxRate decimal.Decimal
	StockPolicy    orders.StockPolicy
}

type Service struct {
	store    Store
	locks    locks.Locker
	stock    *inventory.Ledger
	payments *payments.Ledger
	tables   *tables.Sync
	notifier Notifier
	events   EventPublisher
	views    ViewCache
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }
func WithViewCache(c ViewCache) Option { return func(s *Service) { s.views = c } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

func New(store Store, locker locks.Locker, cfg Config, opts ...Option) *Service {
	if cfg.StockPolicy == (orders.StockPolicy{}) {
		cfg.StockPolicy = orders.DefaultStockPolicy
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pos-engine"
	}
	s := &Service{
		store: store,
		locks: locker,
		cfg:   cfg,
		log:   slog.Default(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	s.stock = inventory.NewLedger(store, cfg.StockPolicy)
	s.payments = payments.NewLedger(store, s.newID)
	s.tables = tables.NewSync(store, s.log)
	return s
}

// effects collects best-effort work produced while the lock is held.
type effects struct {
	notifications []notify.Notification
	events        []orders.Envelope
}

// hold runs fn while holding the order's lock. The lock is released even when fn panics.
func hold[T any](ctx context.Context, s *Service, orderID string, fn func(ctx context.Context) (T, error)) (T, error) {
	unlock, err := s.locks.Acquire(ctx, locks.OrderKey(orderID))
	if err != nil {
		var zero T
		return zero, err
	}
	defer unlock()
	return fn(ctx)
}

// locked runs a mutation under the order's lock. The cached view is dropped before
// the lock is released; effects are dispatched only once fn has succeeded.
func locked[T any](ctx context.Context, s *Service, establishmentID, orderID string, fn func(ctx context.Context, fx *effects) (T, error)) (T, error) {
	fx := &effects{}
	out, err := hold(ctx, s, orderID, func(ctx context.Context) (T, error) {
		defer s.dropView(ctx, establishmentID, orderID)
		return fn(ctx, fx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	s.dispatch(ctx, fx)
	return out, nil
}

// dropView runs even when the request context is already done.
func (s *Service) dropView(ctx context.Context, establishmentID, orderID string) {
	if s.views == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.views.Invalidate(ctx, establishmentID, orderID); err != nil {
		s.log.Error("view cache invalidate failed", "action", "cache_invalidate_failed", "order_id", orderID, "error", err)
	}
}

func (s *Service) dispatch(ctx context.Context, fx *effects) {
	if s.notifier != nil {
		for _, n := range fx.notifications {
			s.notifier.Emit(n)
		}
	}
	if s.events == nil {
		return
	}
	for _, env := range fx.events {
		if err := s.events.PublishEvent(ctx, env); err != nil {
			s.log.Warn("event publish failed", "action", "event_publish_failed", "event_type", env.EventType, "order_id", env.CorrelationID, "error", err)
		}
	}
}

func (s *Service) raise(fx *effects, eventType, orderID string, payload any) {
	env, err := kafkax.NewEnvelope("", eventType, s.cfg.ServiceName, orderID, payload)
	if err != nil {
		s.log.Error("event encode failed", "action", "event_encode_failed", "event_type", eventType, "order_id", orderID, "error", err)
		return
	}
	fx.events = append(fx.events, env)
}

func (s *Service) raiseOrder(fx *effects, eventType string, o orders.Order, actor orders.Actor, edit func(*orders.OrderEventPayload)) {
	p := orders.NewOrderEventPayload(o, actor.ID)
	if edit != nil {
		edit(&p)
	}
	s.raise(fx, eventType, o.ID, p)
}

// raiseStock publishes a StockLevelChanged event for every product whose level moved.
func (s *Service) raiseStock(fx *effects, orderID string, changes []inventory.Change) {
	for _, c := range changes {
		if !c.LevelChanged() {
			continue
		}
		s.raise(fx, orders.EventStockLevelChanged, orderID, orders.StockLevelPayload{
			ProductID:       c.Product.ID,
			EstablishmentID: c.Product.EstablishmentID,
			Stock:           c.Product.Stock,
			Previous:        string(c.Previous),
			Level:           string(c.Product.StockLevel),
		})
	}
}

func checkActor(a orders.Actor) error {
	if a.ID == "" {
		return orders.Invalid("actor.id", "is required")
	}
	if a.EstablishmentID == "" {
		return orders.Invalid("actor.establishment_id", "is required")
	}
	return nil
}

func (s *Service) loadOrder(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
	o, err := s.store.GetOrder(ctx, actor.EstablishmentID, orderID)
	if err != nil {
		return orders.Order{}, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

// loadOpen loads an order that may still be mutated.
func (s *Service) loadOpen(ctx context.Context, actor orders.Actor, orderID string) (orders.Order, error) {
	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return o, err
	}
	if o.Status.Terminal() {
		return o, orders.InvalidState("order", o.ID, string(o.Status), "order is closed")
	}
	return o, nil
}

func (s *Service) loadItem(ctx context.Context, orderID, itemID string) (orders.Item, error) {
	it, err := s.store.GetItem(ctx, orderID, itemID)
	if err != nil {
		return orders.Item{}, fmt.Errorf("load item: %w", err)
	}
	return it, nil
}

func (s *Service) taxRate(ctx context.Context, establishmentID string) (decimal.Decimal, error) {
	r, err := s.store.TaxRate(ctx, establishmentID)
	if errors.Is(err, orders.ErrNotFound) {
		return s.cfg.DefaultTaxRate, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load tax rate: %w", err)
	}
	return r, nil
}

// checkStock verifies every requested product exists and has enough stock,
// summing quantities of repeated products.
func (s *Service) checkStock(ctx context.Context, establishmentID string, items []orders.ItemInput) (map[string]orders.Product, error) {
	out := make(map[string]orders.Product)
	for pid, qty := range orders.RequestedByProduct(items) {
		p, err := s.stock.Check(ctx, establishmentID, pid, qty)
		if err != nil {
			return nil, err
		}
		out[pid] = p
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, o orders.Order) (orders.OrderView, error) {
	items, err := s.store.ListItems(ctx, o.ID)
	if err != nil {
		return orders.OrderView{}, fmt.Errorf("list items: %w", err)
	}
	pays, err := s.store.ListPayments(ctx, o.ID)
	if err != nil {
		return orders.OrderView{}, fmt.Errorf("list payments: %w", err)
	}
	hist, err := s.store.ListStatusChanges(ctx, o.ID)
	if err != nil {
		return orders.OrderView{}, fmt.Errorf("list status changes: %w", err)
	}
	return orders.OrderView{Order: o, Items: items, Payments: pays, History: hist}, nil
}

// GetOrder returns the joined view. It takes the order lock so the view never
// shows a half-applied mutation.
func (s *Service) GetOrder(ctx context.Context, actor orders.Actor, orderID string) (orders.OrderView, error) {
	if err := checkActor(actor); err != nil {
		return orders.OrderView{}, err
	}
	return hold(ctx, s, orderID, func(ctx context.Context) (orders.OrderView, error) {
		return s.loadView(ctx, actor, orderID)
	})
}

func (s *Service) loadView(ctx context.Context, actor orders.Actor, orderID string) (orders.OrderView, error) {
	o, err := s.loadOrder(ctx, actor, orderID)
	if err != nil {
		return orders.OrderView{}, err
	}
	return s.view(ctx, o)
}

// ViewOrder returns the rendered view of an order, serving it from the view
// cache when present. A miss renders under the order lock and stores the result
// before the lock is released, so a later mutation always evicts it.
func (s *Service) ViewOrder(ctx context.Context, actor orders.Actor, orderID string, render func(orders.OrderView) ([]byte, error)) ([]byte, bool, error) {
	if err := checkActor(actor); err != nil {
		return nil, false, err
	}
	if s.views != nil {
		b, err := s.views.Get(ctx, actor.EstablishmentID, orderID)
		if err != nil {
			s.log.Warn("view cache read failed", "action", "cache_read_failed", "order_id", orderID, "error", err)
		}
		if b != nil {
			return b, true, nil
		}
	}

	b, err := hold(ctx, s, orderID, func(ctx context.Context) ([]byte, error) {
		v, err := s.loadView(ctx, actor, orderID)
		if err != nil {
			return nil, err
		}
		b, err := render(v)
		if err != nil {
			return nil, fmt.Errorf("render order view: %w", err)
		}
		if s.views != nil {
			if err := s.views.Set(ctx, actor.EstablishmentID, orderID, b); err != nil {
				s.log.Warn("view cache write failed", "action", "cache_write_failed", "order_id", orderID, "error", err)
			}
		}
		return b, nil
	})
	return b, false, err
}

func (s *Service) tableLabel(ctx context.Context, o orders.Order) string {
	if o.TableID == "" {
		return ""
	}
	t, err := s.store.GetTable(ctx, o.EstablishmentID, o.TableID)
	if err != nil {
		s.log.Warn("table lookup failed", "action", "table_lookup_failed", "table_id", o.TableID, "error", err)
		return o.TableID
	}
	return t.Label
}
