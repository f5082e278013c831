package payment

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/market/internal/domain/order"
)

// cardInputLen is the length of the card form field, "9999 9999".
const cardInputLen = 9

// OrderReader looks up orders.
type OrderReader interface {
	Get(ctx context.Context, id string) (*order.Order, error)
}

// Service records payment attempts and hands them to the queue.
type Service struct {
	repo   Repository
	orders OrderReader
	queue  Queue
	now    func() time.Time
}

// NewService creates a payment Service.
func NewService(repo Repository, orders OrderReader, queue Queue) *Service {
	return &Service{repo: repo, orders: orders, queue: queue, now: time.Now}
}

// Submit records a pending transaction for an order. The amount charged is
// the order total truncated to cents. The card number is only checked for
// shape here; the payment rule is applied by the Processor.
func (s *Service) Submit(ctx context.Context, orderID, cardNumber string) (*Transaction, error) {
	if utf8.RuneCountInString(cardNumber) != cardInputLen {
		return nil, ErrMalformedCard
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Status != order.StatusCreated {
		return nil, ErrOrderNotPayable
	}

	tx := &Transaction{
		ID:         uuid.New().String(),
		OrderID:    o.ID,
		CardNumber: cardNumber,
		Total:      o.Total.RoundDown(2),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}
	return tx, nil
}

// SubmitRandom is Submit with a generated card number, for orders paid from
// a random account.
func (s *Service) SubmitRandom(ctx context.Context, orderID string) (*Transaction, error) {
	return s.Submit(ctx, orderID, GenerateCardNumber())
}

// Start enqueues the settlement of a pending transaction.
func (s *Service) Start(ctx context.Context, txID string) error {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return errors.Wrap(err, "get transaction")
	}
	if tx.Resolved() {
		return nil
	}
	if err := s.queue.Enqueue(ctx, Job{TransactionID: tx.ID, OrderID: tx.OrderID}); err != nil {
		return errors.Wrap(err, "enqueue payment")
	}
	return nil
}

// Progress reports the current state of a transaction.
func (s *Service) Progress(ctx context.Context, txID string) (*Outcome, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, errors.Wrap(err, "get transaction")
	}
	return outcomeOf(tx), nil
}
