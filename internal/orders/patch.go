package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MaxItemQuantity    = 999
	MaxNotesLength     = 500
	MaxModifications   = 20
	MaxModificationLen = 100
	MaxReferenceLength = 120
)

func validateQuantity(field string, q int) error {
	if q <= 0 {
		return Invalid(field, "must be a positive integer")
	}
	if q > MaxItemQuantity {
		return Invalid(field, fmt.Sprintf("must not exceed %d", MaxItemQuantity))
	}
	return nil
}

func validateNotes(field, s string) error {
	if len(s) > MaxNotesLength {
		return Invalid(field, fmt.Sprintf("must not exceed %d characters", MaxNotesLength))
	}
	return nil
}

func validateModifications(field string, mods []string) error {
	if len(mods) > MaxModifications {
		return Invalid(field, fmt.Sprintf("at most %d entries", MaxModifications))
	}
	for i, m := range mods {
		if strings.TrimSpace(m) == "" {
			return Invalid(fmt.Sprintf("%s[%d]", field, i), "must not be blank")
		}
		if len(m) > MaxModificationLen {
			return Invalid(fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("must not exceed %d characters", MaxModificationLen))
		}
	}
	return nil
}

type ItemInput struct {
	ProductID     string
	Quantity      int
	Notes         string
	Modifications []string
}

func (in ItemInput) Validate(field string) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return Invalid(field+".product_id", "is required")
	}
	if err := validateQuantity(field+".quantity", in.Quantity); err != nil {
		return err
	}
	if err := validateNotes(field+".notes", in.Notes); err != nil {
		return err
	}
	return validateModifications(field+".modifications", in.Modifications)
}

func ValidateItemInputs(items []ItemInput) error {
	if len(items) == 0 {
		return Invalid("items", "at least one item is required")
	}
	for i, it := range items {
		if err := it.Validate(fmt.Sprintf("items[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// RequestedByProduct sums quantities per product so stock is checked once per product.
func RequestedByProduct(items []ItemInput) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

type CreateOrderInput struct {
	TableID    string
	WaiterID   string
	CustomerID string
	Notes      string
	Items      []ItemInput
}

func (in CreateOrderInput) Validate() error {
	if strings.TrimSpace(in.WaiterID) == "" {
		return Invalid("waiter_id", "is required")
	}
	if err := validateNotes("notes", in.Notes); err != nil {
		return err
	}
	return ValidateItemInputs(in.Items)
}

// ItemPatch carries optional changes to a single item. Nil fields are left alone.
type ItemPatch struct {
	Quantity *int
	// QuantityDelta adjusts the quantity relative to its value at the time the
	// change is applied. It cannot be combined with Quantity.
	QuantityDelta *int
	Notes         *string
	Modifications *[]string
	Status        *ItemStatus
	Reason        *string
}

func (p ItemPatch) Empty() bool {
	return p.Quantity == nil && p.QuantityDelta == nil && p.Notes == nil && p.Modifications == nil && p.Status == nil
}

func (p ItemPatch) Validate() error {
	if p.Empty() {
		return Invalid("patch", "no changes supplied")
	}
	if p.Quantity != nil && p.QuantityDelta != nil {
		return Invalid("quantity_delta", "cannot be combined with quantity")
	}
	if p.Quantity != nil {
		if err := validateQuantity("quantity", *p.Quantity); err != nil {
			return err
		}
	}
	if p.QuantityDelta != nil && (*p.QuantityDelta == 0 || abs(*p.QuantityDelta) > MaxItemQuantity) {
		return Invalid("quantity_delta", fmt.Sprintf("must be non-zero and within ±%d", MaxItemQuantity))
	}
	if p.Notes != nil {
		if err := validateNotes("notes", *p.Notes); err != nil {
			return err
		}
	}
	if p.Modifications != nil {
		if err := validateModifications("modifications", *p.Modifications); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return Invalid("status", "unknown item status "+string(*p.Status))
	}
	if p.Reason != nil {
		if err := validateNotes("reason", *p.Reason); err != nil {
			return err
		}
	}
	return nil
}

// ResolveQuantity returns the quantity the patch asks for given the current one,
// and whether it differs from current.
func (p ItemPatch) ResolveQuantity(current int) (int, bool, error) {
	q := current
	switch {
	case p.Quantity != nil:
		q = *p.Quantity
	case p.QuantityDelta != nil:
		q = current + *p.QuantityDelta
		if err := validateQuantity("quantity_delta", q); err != nil {
			return current, false, err
		}
	}
	return q, q != current, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type ItemStatusInput struct {
	Status ItemStatus
	Notes  string
	Reason string
}

func (in ItemStatusInput) Validate() error {
	if !in.Status.Valid() {
		return Invalid("status", "unknown item status "+string(in.Status))
	}
	if err := validateNotes("notes", in.Notes); err != nil {
		return err
	}
	return validateNotes("reason", in.Reason)
}

type PaymentInput struct {
	MethodID  string
	Amount    decimal.Decimal
	Reference string
	Notes     string
}

func (in PaymentInput) Validate() error {
	if strings.TrimSpace(in.MethodID) == "" {
		return Invalid("method_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return Invalid("amount", "must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Truncate(2)) {
		return Invalid("amount", "must have at most two decimal places")
	}
	if len(in.Reference) > MaxReferenceLength {
		return Invalid("reference", fmt.Sprintf("must not exceed %d characters", MaxReferenceLength))
	}
	return validateNotes("notes", in.Notes)
}

// OrderPatch carries optional changes to an order. Nil fields are left alone.
type OrderPatch struct {
	Status     *Status
	TableID    *string
	WaiterID   *string
	Notes      *string
	CustomerID *string
	Reason     *string
}

func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.TableID == nil && p.WaiterID == nil && p.Notes == nil && p.CustomerID == nil
}

func (p OrderPatch) Validate() error {
	if p.Empty() {
		return Invalid("patch", "no changes supplied")
	}
	if p.Status != nil && !p.Status.Valid() {
		return Invalid("status", "unknown order status "+string(*p.Status))
	}
	if p.WaiterID != nil && strings.TrimSpace(*p.WaiterID) == "" {
		return Invalid("waiter_id", "must not be blank")
	}
	if p.Notes != nil {
		if err := validateNotes("notes", *p.Notes); err != nil {
			return err
		}
	}
	if p.Reason != nil {
		if err := validateNotes("reason", *p.Reason); err != nil {
			return err
		}
	}
	return nil
}
