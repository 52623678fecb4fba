package httpx

import (
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/shopspring/decimal"
)

// ---- requests ----

type ItemReq struct {
	ProductID     string   `json:"product_id"`
	Quantity      int      `json:"quantity"`
	Notes         string   `json:"notes"`
	Modifications []string `json:"modifications"`
}

func (r ItemReq) input() orders.ItemInput {
	return orders.ItemInput{ProductID: r.ProductID, Quantity: r.Quantity, Notes: r.Notes, Modifications: r.Modifications}
}

func itemInputs(items []ItemReq) []orders.ItemInput {
	out := make([]orders.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, it.input())
	}
	return out
}

type CreateOrderReq struct {
	TableID    string    `json:"table_id"`
	WaiterID   string    `json:"waiter_id"`
	CustomerID string    `json:"customer_id"`
	Notes      string    `json:"notes"`
	Items      []ItemReq `json:"items"`
}

type AddItemsReq struct {
	Items []ItemReq `json:"items"`
}

type ItemPatchReq struct {
	Quantity      *int               `json:"quantity"`
	QuantityDelta *int               `json:"quantity_delta"`
	Notes         *string            `json:"notes"`
	Modifications *[]string          `json:"modifications"`
	Status        *orders.ItemStatus `json:"status"`
	Reason        *string            `json:"reason"`
}

func (r ItemPatchReq) patch() orders.ItemPatch {
	return orders.ItemPatch{
		Quantity:      r.Quantity,
		QuantityDelta: r.QuantityDelta,
		Notes:         r.Notes,
		Modifications: r.Modifications,
		Status:        r.Status,
		Reason:        r.Reason,
	}
}

type ItemStatusReq struct {
	Status orders.ItemStatus `json:"status"`
	Notes  string            `json:"notes"`
	Reason string            `json:"reason"`
}

type PaymentReq struct {
	MethodID  string          `json:"method_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

type VoidReq struct {
	Reason string `json:"reason"`
}

type OrderPatchReq struct {
	Status     *orders.Status `json:"status"`
	TableID    *string        `json:"table_id"`
	WaiterID   *string        `json:"waiter_id"`
	Notes      *string        `json:"notes"`
	CustomerID *string        `json:"customer_id"`
	Reason     *string        `json:"reason"`
}

// ---- responses ----

type OrderResp struct {
	ID                 string     `json:"id"`
	Number             string     `json:"number"`
	EstablishmentID    string     `json:"establishment_id"`
	TableID            string     `json:"table_id,omitempty"`
	WaiterID           string     `json:"waiter_id"`
	CustomerID         string     `json:"customer_id,omitempty"`
	Status             string     `json:"status"`
	Subtotal           string     `json:"subtotal"`
	Tax                string     `json:"tax"`
	TaxRate            string     `json:"tax_rate"`
	Total              string     `json:"total"`
	PaidAmount         string     `json:"paid_amount"`
	Remaining          string     `json:"remaining"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

type ItemResp struct {
	ID                 string     `json:"id"`
	OrderID            string     `json:"order_id"`
	ProductID          string     `json:"product_id"`
	ProductName        string     `json:"product_name"`
	Quantity           int        `json:"quantity"`
	UnitPrice          string     `json:"unit_price"`
	Subtotal           string     `json:"subtotal"`
	Notes              string     `json:"notes,omitempty"`
	Modifications      []string   `json:"modifications"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

type PaymentResp struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	MethodID    string     `json:"method_id"`
	Amount      string     `json:"amount"`
	Reference   string     `json:"reference,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	ProcessedBy string     `json:"processed_by"`
	Voided      bool       `json:"voided"`
	VoidedBy    string     `json:"voided_by,omitempty"`
	VoidReason  string     `json:"void_reason,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type StatusChangeResp struct {
	ItemID         string    `json:"item_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type OrderViewResp struct {
	Order    OrderResp          `json:"order"`
	Items    []ItemResp         `json:"items"`
	Payments []PaymentResp      `json:"payments"`
	History  []StatusChangeResp `json:"history"`
}

type ProductResp struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Stock      int    `json:"stock"`
	StockLevel string `json:"stock_level"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toOrderResp(o orders.Order) OrderResp {
	return OrderResp{
		ID:                 o.ID,
		Number:             o.Number,
		EstablishmentID:    o.EstablishmentID,
		TableID:            o.TableID,
		WaiterID:           o.WaiterID,
		CustomerID:         o.CustomerID,
		Status:             string(o.Status),
		Subtotal:           money(o.Subtotal),
		Tax:                money(o.Tax),
		TaxRate:            o.TaxRate.String(),
		Total:              money(o.Total),
		PaidAmount:         money(o.PaidAmount),
		Remaining:          money(o.Remaining()),
		Notes:              o.Notes,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		PaidAt:             o.PaidAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CancelledBy:        o.CancelledBy,
		CancellationReason: o.CancellationReason,
	}
}

func toItemResp(it orders.Item) ItemResp {
	mods := it.Modifications
	if mods == nil {
		mods = []string{}
	}
	return ItemResp{
		ID:                 it.ID,
		OrderID:            it.OrderID,
		ProductID:          it.ProductID,
		ProductName:        it.ProductName,
		Quantity:           it.Quantity,
		UnitPrice:          money(it.UnitPrice),
		Subtotal:           money(it.Subtotal),
		Notes:              it.Notes,
		Modifications:      mods,
		Status:             string(it.Status),
		CreatedAt:          it.CreatedAt,
		UpdatedAt:          it.UpdatedAt,
		StartedAt:          it.StartedAt,
		CompletedAt:        it.CompletedAt,
		DeliveredAt:        it.DeliveredAt,
		CancelledAt:        it.CancelledAt,
		CancelledBy:        it.CancelledBy,
		CancellationReason: it.CancellationReason,
	}
}

func toItemResps(items []orders.Item) []ItemResp {
	out := make([]ItemResp, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResp(it))
	}
	return out
}

func toPaymentResp(p orders.Payment) PaymentResp {
	return PaymentResp{
		ID:          p.ID,
		OrderID:     p.OrderID,
		MethodID:    p.MethodID,
		Amount:      money(p.Amount),
		Reference:   p.Reference,
		Notes:       p.Notes,
		ProcessedBy: p.ProcessedBy,
		Voided:      p.Voided,
		VoidedBy:    p.VoidedBy,
		VoidReason:  p.VoidReason,
		VoidedAt:    p.VoidedAt,
		CreatedAt:   p.CreatedAt,
	}
}

func toViewResp(v orders.OrderView) OrderViewResp {
	out := OrderViewResp{
		Order:    toOrderResp(v.Order),
		Items:    toItemResps(v.Items),
		Payments: make([]PaymentResp, 0, len(v.Payments)),
		History:  make([]StatusChangeResp, 0, len(v.History)),
	}
	for _, p := range v.Payments {
		out.Payments = append(out.Payments, toPaymentResp(p))
	}
	for _, c := range v.History {
		out.History = append(out.History, StatusChangeResp{
			ItemID:         c.ItemID,
			PreviousStatus: c.PreviousStatus,
			NewStatus:      c.NewStatus,
			ChangedBy:      c.ChangedBy,
			Notes:          c.Notes,
			CreatedAt:      c.CreatedAt,
		})
	}
	return out
}

func toProductResp(p orders.Product) ProductResp {
	return ProductResp{ID: p.ID, Name: p.Name, Price: money(p.Price), Stock: p.Stock, StockLevel: string(p.StockLevel)}
}
