package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Reason explains why a transaction failed.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidCard       Reason = "invalid_card"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonOrderNotPayable   Reason = "order_not_payable"
)

func (r Reason) text() string {
	switch r {
	case ReasonInvalidCard:
		return "invalid card number"
	case ReasonInsufficientStock:
		return "insufficient stock"
	case ReasonOrderNotPayable:
		return "order is not awaiting payment"
	default:
		return string(r)
	}
}

var (
	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrAlreadyResolved is returned by repositories when settling a
	// transaction that is no longer pending.
	ErrAlreadyResolved = errors.New("transaction already resolved")
	// ErrOrderNotPayable is returned when paying an order that is not in the
	// created state.
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
	// ErrPaymentPending is returned when an order already has a payment
	// awaiting settlement.
	ErrPaymentPending = errors.New("order already has a pending payment")
	// ErrMalformedCard is returned for card input that fails the form check.
	ErrMalformedCard = errors.New("card number must be 9 characters")
	// ErrInsufficientStock matches any *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports an offer whose remaining stock is lower than
// the quantity ordered.
type InsufficientStockError struct {
	OfferID   int64
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for offer %d: requested %d", e.OfferID, e.Requested)
}

// Is reports whether target is ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Transaction is a card payment attempt for an order. IsSuccess is nil while
// the payment is pending.
type Transaction struct {
	ID         string
	OrderID    string
	CardNumber string
	Total      decimal.Decimal
	IsSuccess  *bool
	Reason     Reason
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Resolved reports whether the transaction has a final result.
func (t *Transaction) Resolved() bool {
	return t.IsSuccess != nil
}

// Job asks a worker to settle a transaction.
type Job struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
}

// Outcome is the business result of a payment.
type Outcome struct {
	TransactionID string
	OrderID       string
	Pending       bool
	Paid          bool
	Reason        Reason
	Message       string
	// Duplicate is set when Pay found the transaction already settled.
	Duplicate bool
}

func outcomeOf(tx *Transaction) *Outcome {
	o := &Outcome{TransactionID: tx.ID, OrderID: tx.OrderID}
	switch {
	case tx.IsSuccess == nil:
		o.Pending = true
		o.Message = "Payment is in progress"
	case *tx.IsSuccess:
		o.Paid = true
		o.Message = fmt.Sprintf("Order %s paid with card %s, amount $%s",
			tx.OrderID, tx.CardNumber, tx.Total.StringFixed(2))
	default:
		o.Reason = tx.Reason
		o.Message = fmt.Sprintf("Could not pay order %s with card %s, amount $%s. Reason: %s",
			tx.OrderID, tx.CardNumber, tx.Total.StringFixed(2), tx.Reason.text())
	}
	return o
}

// Repository persists transactions and settles them.
type Repository interface {
	// CreateTransaction returns ErrPaymentPending when the order already has
	// an unresolved transaction.
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListPending(ctx context.Context, limit int) ([]Transaction, error)
	// Complete marks the transaction successful and the order paid, and
	// decrements the stock of every order item, all in one database
	// transaction. It returns ErrAlreadyResolved when the transaction is not
	// pending, ErrOrderNotPayable when the order is not in the created state
	// and an *InsufficientStockError when an offer is short; in all these
	// cases nothing is changed.
	Complete(ctx context.Context, id string) error
	// Fail marks the transaction failed, and the order not_paid if it is
	// still created. It returns ErrAlreadyResolved when the transaction is
	// not pending.
	Fail(ctx context.Context, id string, reason Reason) error
}

// Queue hands payment jobs to workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Handler processes one payment job.
type Handler func(ctx context.Context, job Job) error
