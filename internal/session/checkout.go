package session

import (
	"context"

	"github.com/xenking/market/internal/domain/order"
)

// Checkout returns the delivery and payment choices saved so far. Fields
// not chosen yet are empty.
func (s *Store) Checkout(ctx context.Context, id string) (order.Checkout, error) {
	all, err := s.All(ctx, id)
	if err != nil {
		return order.Checkout{}, err
	}
	return order.Checkout{
		Delivery: order.DeliveryType(all[FieldDelivery]),
		City:     all[FieldCity],
		Address:  all[FieldAddress],
		Payment:  order.PaymentType(all[FieldPayment]),
	}, nil
}

// SaveDelivery stores the delivery step.
func (s *Store) SaveDelivery(ctx context.Context, id string, delivery order.DeliveryType, city, address string) error {
	return s.Set(ctx, id,
		FieldDelivery, string(delivery),
		FieldCity, city,
		FieldAddress, address,
	)
}

// SavePayment stores the payment step.
func (s *Store) SavePayment(ctx context.Context, id string, payment order.PaymentType) error {
	return s.Set(ctx, id, FieldPayment, string(payment))
}

// ClearCheckout forgets the checkout choices, typically after an order is
// placed.
func (s *Store) ClearCheckout(ctx context.Context, id string) error {
	return s.Delete(ctx, id, FieldDelivery, FieldCity, FieldAddress, FieldPayment)
}

// StartPayment records the transaction being paid in this session and
// resets any earlier payment progress.
func (s *Store) StartPayment(ctx context.Context, id, txID string) error {
	if err := s.Delete(ctx, id, FieldPaymentStarted, FieldPaymentMessage); err != nil {
		return err
	}
	return s.Set(ctx, id, FieldPaymentTx, txID)
}
