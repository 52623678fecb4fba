package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/payments"
	"github.com/ariefcatur/go-realtime-pos/internal/saga"
)

// ApplyPayment records a payment. The order is closed and its table released
// once the paid amount reaches the total.
func (s *Service) ApplyPayment(ctx context.Context, actor orders.Actor, orderID string, in orders.PaymentInput) (orders.Payment, error) {
	if err := checkActor(actor); err != nil {
		return orders.Payment{}, err
	}
	if err := in.Validate(); err != nil {
		return orders.Payment{}, err
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.Payment, error) {
		now := s.now()
		o, err := s.loadOrder(ctx, actor, orderID)
		if err != nil {
			return orders.Payment{}, err
		}
		if err := s.payments.Check(o, in.Amount); err != nil {
			return orders.Payment{}, err
		}

		sg := saga.New("apply_payment", s.log)
		var p orders.Payment
		err = sg.Run(ctx, saga.Step{
			Name: "record payment",
			Do: func(ctx context.Context) (err error) {
				p, err = s.payments.Record(ctx, o, in, actor, now)
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.payments.Revoke(ctx, p, "payment rolled back", s.now())
			},
		})
		if err != nil {
			return orders.Payment{}, sg.Abort(ctx, err)
		}

		next := o
		closed := payments.Settle(&next, in.Amount, now)
		steps := []saga.Step{s.saveOrderStep(next, o)}
		if closed {
			steps = append(steps,
				s.statusStep(s.orderChange(o, o.Status, next.Status, actor, "fully paid", now)),
				s.releaseStep(o.EstablishmentID, o.TableID, o.ID),
			)
		}
		for _, st := range steps {
			if err := sg.Run(ctx, st); err != nil {
				return orders.Payment{}, sg.Abort(ctx, err)
			}
		}
		sg.Commit()

		s.log.Info("payment applied", "action", "payment_applied", "order_id", o.ID, "payment_id", p.ID,
			"amount", p.Amount.StringFixed(2), "paid_amount", next.PaidAmount.StringFixed(2), "order_status", next.Status)
		s.raiseOrder(fx, orders.EventPaymentApplied, next, actor, func(e *orders.OrderEventPayload) { e.PaymentID = p.ID })
		return p, nil
	})
}

// VoidPayment voids a payment on behalf of a manager or admin. A paid order that
// falls below its total is re-opened as pending and re-seated if its table is
// free; when another order took the table, the re-opened order keeps none.
func (s *Service) VoidPayment(ctx context.Context, actor orders.Actor, orderID, paymentID, reason string) (orders.Payment, error) {
	if err := checkActor(actor); err != nil {
		return orders.Payment{}, err
	}
	if !actor.Privileged() {
		return orders.Payment{}, orders.Forbidden(actor, "void payments")
	}
	if strings.TrimSpace(reason) == "" {
		return orders.Payment{}, orders.Invalid("reason", "is required to void a payment")
	}

	return locked(ctx, s, actor.EstablishmentID, orderID, func(ctx context.Context, fx *effects) (orders.Payment, error) {
		now := s.now()
		o, err := s.loadOrder(ctx, actor, orderID)
		if err != nil {
			return orders.Payment{}, err
		}
		p, err := s.store.GetPayment(ctx, actor.EstablishmentID, o.ID, paymentID)
		if err != nil {
			return orders.Payment{}, fmt.Errorf("load payment: %w", err)
		}
		if p.Voided {
			return orders.Payment{}, orders.InvalidState("payment", p.ID, "voided", "payment is already voided")
		}

		sg := saga.New("void_payment", s.log)
		var voided orders.Payment
		err = sg.Run(ctx, saga.Step{
			Name: "void payment",
			Do: func(ctx context.Context) (err error) {
				voided, err = s.payments.Void(ctx, p, reason, actor, now)
				return err
			},
			Undo: func(ctx context.Context) error { return s.payments.Restore(ctx, p) },
		})
		if err != nil {
			return orders.Payment{}, sg.Abort(ctx, err)
		}

		next := o
		reopened := payments.Unsettle(&next, p.Amount, now)
		if reopened && next.TableID != "" {
			if err := sg.Run(ctx, s.reseatStep(&next)); err != nil {
				return orders.Payment{}, sg.Abort(ctx, err)
			}
			if next.TableID == "" {
				s.log.Info("re-opened order left without a table", "action", "order_unseated", "order_id", o.ID, "table_id", o.TableID)
			}
		}
		steps := []saga.Step{s.saveOrderStep(next, o)}
		if reopened {
			steps = append(steps, s.statusStep(s.orderChange(o, o.Status, next.Status, actor, "payment voided: "+reason, now)))
		}
		for _, st := range steps {
			if err := sg.Run(ctx, st); err != nil {
				return orders.Payment{}, sg.Abort(ctx, err)
			}
		}
		sg.Commit()

		s.log.Info("payment voided", "action", "payment_voided", "order_id", o.ID, "payment_id", p.ID,
			"amount", p.Amount.StringFixed(2), "paid_amount", next.PaidAmount.StringFixed(2), "reopened", reopened)
		s.raiseOrder(fx, orders.EventPaymentVoided, next, actor, func(e *orders.OrderEventPayload) { e.PaymentID = p.ID })
		return voided, nil
	})
}
