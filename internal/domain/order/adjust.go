package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordPayment adds amount to the payments of an order. Overpayment is
// allowed and leaves the order with a credit.
func (s *Service) RecordPayment(ctx context.Context, id int64, amount decimal.Decimal) (*Order, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "payment", Reason: "must be greater than zero"}
	}
	o, err := s.mutate(ctx, "pay", id, func(o *Order) {
		o.Payments = o.Payments.Add(amount)
	})
	if err != nil {
		return nil, err
	}
	s.payments.Add(ctx, 1)
	return o, nil
}

// AdjustDeliveryFee replaces the delivery fee of an order. The total becomes
// the items subtotal plus the new fee, which drops any discount.
func (s *Service) AdjustDeliveryFee(ctx context.Context, id int64, fee decimal.Decimal) (*Order, error) {
	fee = fee.Round(2)
	if fee.IsNegative() {
		return nil, &ValidationError{Field: "delivery_fee", Reason: "must not be negative"}
	}
	return s.mutate(ctx, "adjust_delivery", id, func(o *Order) {
		o.DeliveryFee = fee
		o.TotalPrice = o.ItemsSubtotal().Add(fee)
	})
}

// ApplyDiscount sets the total of an order to its standard total minus
// amount, floored at zero.
func (s *Service) ApplyDiscount(ctx context.Context, id int64, amount decimal.Decimal) (*Order, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "discount", Reason: "must be greater than zero"}
	}
	return s.mutate(ctx, "add_discount", id, func(o *Order) {
		total := s.standardTotal(o).Sub(amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
		o.TotalPrice = total
	})
}

// CancelDiscount restores the standard total of an order.
func (s *Service) CancelDiscount(ctx context.Context, id int64) (*Order, error) {
	return s.mutate(ctx, "cancel_discount", id, func(o *Order) {
		o.TotalPrice = s.standardTotal(o)
	})
}

// Close marks an order as delivered.
func (s *Service) Close(ctx context.Context, id int64) (*Order, error) {
	return s.mutate(ctx, "close", id, func(o *Order) {
		o.Status = StatusClosed
	})
}

// Reopen marks a closed order as open again.
func (s *Service) Reopen(ctx context.Context, id int64) (*Order, error) {
	return s.mutate(ctx, "reopen", id, func(o *Order) {
		o.Status = StatusOpen
	})
}

func (s *Service) standardTotal(o *Order) decimal.Decimal {
	subtotal := o.ItemsSubtotal()
	return subtotal.Add(s.schedule.Resolve(subtotal).DeliveryFee)
}

// mutate locks the order, applies fn and writes the order back in one
// transaction.
func (s *Service) mutate(ctx context.Context, op string, id int64, fn func(o *Order)) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Adjust")
	span.SetAttributes(attribute.String("order.op", op), attribute.Int64("order.id", id))
	defer func() { endSpan(span, rerr) }()

	var updated *Order
	err := s.store.Tx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return orderNotFound(id)
			}
			return errors.Wrap(err, "lock order")
		}

		fn(o)

		if err := tx.SaveOrder(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.adjustments.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	return updated, nil
}
