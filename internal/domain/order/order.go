package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. It only moves forward:
// created, then paid or not_paid, then ok and delivered.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusNotPaid   Status = "not_paid"
	StatusOK        Status = "ok"
	StatusDelivered Status = "delivered"
)

// DeliveryType is the shipping option chosen at checkout.
type DeliveryType string

const (
	DeliveryRegular DeliveryType = "regular"
	DeliveryExpress DeliveryType = "express"
)

// PaymentType is the payment option chosen at checkout.
type PaymentType string

const (
	// PaymentCard pays with a card number entered by the customer.
	PaymentCard PaymentType = "card"
	// PaymentRandom pays from a generated card number.
	PaymentRandom PaymentType = "random"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrderCreationFailed is returned when an offer referenced by the cart
	// disappeared before the order was persisted. Nothing is written.
	ErrOrderCreationFailed = errors.New("order creation failed")
)

// OfferVanishedError reports the offer that no longer exists. It matches
// ErrOrderCreationFailed with errors.Is.
type OfferVanishedError struct {
	OfferID int64
}

func (e *OfferVanishedError) Error() string {
	if e.OfferID == 0 {
		return "order creation failed: offer no longer exists"
	}
	return fmt.Sprintf("order creation failed: offer %d no longer exists", e.OfferID)
}

// Is reports whether target is ErrOrderCreationFailed.
func (e *OfferVanishedError) Is(target error) bool {
	return target == ErrOrderCreationFailed
}

// ValidationError describes an invalid checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Customer is the buyer identity snapshotted into the order.
type Customer struct {
	FullName string
	Email    string
	Phone    string
}

// Checkout holds the delivery and payment choices collected by the checkout
// steps.
type Checkout struct {
	Delivery DeliveryType
	City     string
	Address  string
	Payment  PaymentType
}

// Validate checks the checkout choices.
func (c Checkout) Validate() error {
	switch c.Delivery {
	case DeliveryRegular, DeliveryExpress:
	default:
		return &ValidationError{Field: "delivery", Reason: fmt.Sprintf("unknown delivery type %q", c.Delivery)}
	}
	if c.City == "" {
		return &ValidationError{Field: "city", Reason: "required"}
	}
	if c.Address == "" {
		return &ValidationError{Field: "address", Reason: "required"}
	}
	switch c.Payment {
	case PaymentCard, PaymentRandom:
	default:
		return &ValidationError{Field: "payment", Reason: fmt.Sprintf("unknown payment type %q", c.Payment)}
	}
	return nil
}

// Order is a placed order.
type Order struct {
	ID       string
	Customer Customer
	Checkout Checkout
	Status   Status
	// Subtotal is the goods price before any discount.
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	CreatedAt   time.Time
	Items       []Item
}

// Item is an order line. Price is the unit price at checkout time and does
// not follow later offer price changes.
type Item struct {
	OfferID   int64
	ProductID int64
	Price     decimal.Decimal
	Quantity  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and its items atomically. It returns an
	// *OfferVanishedError when an item references a missing offer.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// ListByEmail returns the orders placed with email, newest first.
	ListByEmail(ctx context.Context, email string) ([]Order, error)
}
