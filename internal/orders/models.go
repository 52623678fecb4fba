package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Actor is the identity an operation runs as. It is always passed explicitly.
type Actor struct {
	ID              string
	Role            Role
	EstablishmentID string
}

func (a Actor) Privileged() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

// SystemActor is recorded on compensating writes.
const SystemActor = "system"

type Product struct {
	ID              string
	EstablishmentID string
	Name            string
	Price           decimal.Decimal
	Stock           int
	StockLevel      StockLevel
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TableStatus string

const (
	TableAvailable    TableStatus = "available"
	TableOccupied     TableStatus = "occupied"
	TableReserved     TableStatus = "reserved"
	TableOutOfService TableStatus = "out_of_service"
)

type Table struct {
	ID              string
	EstablishmentID string
	Label           string
	Status          TableStatus
	CurrentOrderID  string
	UpdatedAt       time.Time
}

// Seatable reports whether orderID may occupy the table.
func (t Table) Seatable(orderID string) bool {
	switch t.Status {
	case TableAvailable, TableReserved:
		return true
	case TableOccupied:
		return t.CurrentOrderID == orderID
	default:
		return false
	}
}

type Order struct {
	ID                 string
	Number             string
	EstablishmentID    string
	TableID            string
	WaiterID           string
	CustomerID         string
	Status             Status
	Subtotal           decimal.Decimal
	Tax                decimal.Decimal
	TaxRate            decimal.Decimal
	Total              decimal.Decimal
	PaidAmount         decimal.Decimal
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PaidAt             *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
}

func (o Order) Remaining() decimal.Decimal {
	r := o.Total.Sub(o.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ApplyTotals copies computed totals onto the order.
func (o *Order) ApplyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Total = t.Total
}

type Item struct {
	ID                 string
	OrderID            string
	ProductID          string
	ProductName        string
	Quantity           int
	UnitPrice          decimal.Decimal
	Subtotal           decimal.Decimal
	Notes              string
	Modifications      []string
	Status             ItemStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string
}

type Payment struct {
	ID              string
	OrderID         string
	EstablishmentID string
	MethodID        string
	Amount          decimal.Decimal
	Reference       string
	Notes           string
	ProcessedBy     string
	Voided          bool
	VoidedBy        string
	VoidReason      string
	VoidedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusChange is an append-only log row. ItemID is empty for order-level changes.
type StatusChange struct {
	ID             string
	OrderID        string
	ItemID         string
	PreviousStatus string
	NewStatus      string
	ChangedBy      string
	Notes          string
	CreatedAt      time.Time
}

// OrderView is the joined read model returned by every operation.
type OrderView struct {
	Order    Order
	Items    []Item
	Payments []Payment
	History  []StatusChange
}

// NewOrderNumber builds a human-facing number such as ORD-20261019-3FA85F.
func NewOrderNumber(now time.Time, orderID string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
