// Package payments tracks money applied to an order and keeps paid_amount
// within the order total.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/shopspring/decimal"
)

type Store interface {
	InsertPayment(ctx context.Context, p orders.Payment) error
	GetPayment(ctx context.Context, establishmentID, orderID, paymentID string) (orders.Payment, error)
	// MarkPaymentVoided flips a payment to voided only if it is not voided yet.
	MarkPaymentVoided(ctx context.Context, p orders.Payment) (bool, error)
	// UnvoidPayment restores a payment voided by a failed operation.
	UnvoidPayment(ctx context.Context, p orders.Payment) error
}

type Ledger struct {
	store Store
	newID func() string
}

func NewLedger(store Store, newID func() string) *Ledger {
	return &Ledger{store: store, newID: newID}
}

// Check validates amount against the order before anything is written.
func (l *Ledger) Check(o orders.Order, amount decimal.Decimal) error {
	if o.Status == orders.StatusCancelled {
		return orders.InvalidState("order", o.ID, string(o.Status), "cannot take payments on a cancelled order")
	}
	remaining := o.Remaining()
	if amount.GreaterThan(remaining) {
		return &orders.OverpaymentError{
			Total:     o.Total,
			Paid:      o.PaidAmount,
			Remaining: remaining,
			Attempted: amount,
		}
	}
	return nil
}

// Record persists a new payment for o. The caller settles the order afterwards.
func (l *Ledger) Record(ctx context.Context, o orders.Order, in orders.PaymentInput, actor orders.Actor, now time.Time) (orders.Payment, error) {
	if err := l.Check(o, in.Amount); err != nil {
		return orders.Payment{}, err
	}
	p := orders.Payment{
		ID:              l.newID(),
		OrderID:         o.ID,
		EstablishmentID: o.EstablishmentID,
		MethodID:        in.MethodID,
		Amount:          in.Amount,
		Reference:       in.Reference,
		Notes:           in.Notes,
		ProcessedBy:     actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := l.store.InsertPayment(ctx, p); err != nil {
		return orders.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

// Void marks p voided on behalf of a privileged actor.
func (l *Ledger) Void(ctx context.Context, p orders.Payment, reason string, actor orders.Actor, now time.Time) (orders.Payment, error) {
	if !actor.Privileged() {
		return orders.Payment{}, orders.Forbidden(actor, "void payments")
	}
	if strings.TrimSpace(reason) == "" {
		return orders.Payment{}, orders.Invalid("reason", "is required to void a payment")
	}
	return l.markVoided(ctx, p, reason, actor.ID, now)
}

// Revoke voids a payment as part of a compensation, bypassing the privilege check.
func (l *Ledger) Revoke(ctx context.Context, p orders.Payment, reason string, now time.Time) error {
	_, err := l.markVoided(ctx, p, reason, orders.SystemActor, now)
	return err
}

func (l *Ledger) Restore(ctx context.Context, p orders.Payment) error {
	return l.store.UnvoidPayment(ctx, p)
}

func (l *Ledger) markVoided(ctx context.Context, p orders.Payment, reason, by string, now time.Time) (orders.Payment, error) {
	if p.Voided {
		return p, alreadyVoided(p)
	}
	p.Voided = true
	p.VoidedBy = by
	p.VoidReason = reason
	p.VoidedAt = &now
	p.UpdatedAt = now
	ok, err := l.store.MarkPaymentVoided(ctx, p)
	if err != nil {
		return orders.Payment{}, fmt.Errorf("void payment: %w", err)
	}
	if !ok {
		return orders.Payment{}, alreadyVoided(p)
	}
	return p, nil
}

func alreadyVoided(p orders.Payment) error {
	return orders.InvalidState("payment", p.ID, "voided", "payment is already voided")
}

// Settle adds amount to the order's paid total and closes the order once fully paid.
// It reports whether the order became paid.
func Settle(o *orders.Order, amount decimal.Decimal, now time.Time) bool {
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.UpdatedAt = now
	if o.Status != orders.StatusPaid && o.PaidAmount.GreaterThanOrEqual(o.Total) {
		o.Status = orders.StatusPaid
		o.PaidAt = &now
		return true
	}
	return false
}

// Unsettle removes amount from the paid total, floored at zero. A paid order that
// drops below its total is re-opened as pending; the return value reports that.
func Unsettle(o *orders.Order, amount decimal.Decimal, now time.Time) bool {
	o.PaidAmount = o.PaidAmount.Sub(amount)
	if o.PaidAmount.IsNegative() {
		o.PaidAmount = decimal.Zero
	}
	o.UpdatedAt = now
	if o.Status == orders.StatusPaid && o.PaidAmount.LessThan(o.Total) {
		o.Status = orders.StatusPending
		o.PaidAt = nil
		return true
	}
	return false
}
