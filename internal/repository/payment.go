package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/market/internal/domain/payment"
)

const (
	createTransactionSQL = `INSERT INTO bank_transactions (id, order_id, card_number, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	getTransactionSQL = `SELECT id, order_id, card_number, total_price, is_success, reason, created_at, resolved_at
		FROM bank_transactions WHERE id = $1`

	listPendingSQL = `SELECT id, order_id, card_number, total_price, is_success, reason, created_at, resolved_at
		FROM bank_transactions WHERE is_success IS NULL ORDER BY created_at LIMIT $1`

	resolveTransactionSQL = `UPDATE bank_transactions
		SET is_success = $2, reason = $3, resolved_at = NOW()
		WHERE id = $1 AND is_success IS NULL
		RETURNING order_id`

	transactionExistsSQL = `SELECT EXISTS (SELECT 1 FROM bank_transactions WHERE id = $1)`

	listOrderItemsForStockSQL = `SELECT offer_id, SUM(quantity)::int FROM order_items
		WHERE order_id = $1 GROUP BY offer_id ORDER BY offer_id`

	decrementStockSQL = `UPDATE offers SET remaining_stock = remaining_stock - $2
		WHERE id = $1 AND remaining_stock >= $2`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1 AND status = 'created'`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// CreateTransaction stores a pending transaction. It returns
// payment.ErrPaymentPending when the order already has one.
func (r *PaymentRepository) CreateTransaction(ctx context.Context, t *payment.Transaction) error {
	_, err := r.pool.Exec(ctx, createTransactionSQL, t.ID, t.OrderID, t.CardNumber, t.Total, t.CreatedAt)
	if pgCode(err) == uniqueViolation {
		return payment.ErrPaymentPending
	}
	if err != nil {
		return fmt.Errorf("creating transaction for order %q: %w", t.OrderID, err)
	}
	return nil
}

// GetTransaction returns a transaction by its identifier.
func (r *PaymentRepository) GetTransaction(ctx context.Context, id string) (*payment.Transaction, error) {
	rows, err := r.pool.Query(ctx, getTransactionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}
	return &t, nil
}

// ListPending returns up to limit unresolved transactions, oldest first.
func (r *PaymentRepository) ListPending(ctx context.Context, limit int) ([]payment.Transaction, error) {
	rows, err := r.pool.Query(ctx, listPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	return pgx.CollectRows(rows, scanTransaction)
}

// Complete marks the transaction successful, moves the order from created to
// paid and takes the ordered quantities out of stock. An order that is no
// longer awaiting payment or any short offer rolls the whole transaction
// back.
func (r *PaymentRepository) Complete(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		orderID, err := resolve(ctx, tx, id, true, payment.ReasonNone)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, setOrderStatusSQL, orderID, "paid")
		if err != nil {
			return fmt.Errorf("marking order %q paid: %w", orderID, err)
		}
		if tag.RowsAffected() != 1 {
			return payment.ErrOrderNotPayable
		}

		rows, err := tx.Query(ctx, listOrderItemsForStockSQL, orderID)
		if err != nil {
			return fmt.Errorf("listing items of order %q: %w", orderID, err)
		}
		items, err := pgx.CollectRows(rows, scanStockItem)
		if err != nil {
			return fmt.Errorf("listing items of order %q: %w", orderID, err)
		}

		for _, it := range items {
			tag, err := tx.Exec(ctx, decrementStockSQL, it.offerID, it.quantity)
			if pgCode(err) == checkViolation {
				return &payment.InsufficientStockError{OfferID: it.offerID, Requested: it.quantity}
			}
			if err != nil {
				return fmt.Errorf("decrementing stock of offer %d: %w", it.offerID, err)
			}
			if tag.RowsAffected() == 0 {
				return &payment.InsufficientStockError{OfferID: it.offerID, Requested: it.quantity}
			}
		}
		return nil
	})
}

// Fail marks the transaction failed with reason. The order moves to not_paid
// only from created; an order settled by another attempt keeps its status.
func (r *PaymentRepository) Fail(ctx context.Context, id string, reason payment.Reason) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		orderID, err := resolve(ctx, tx, id, false, reason)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, setOrderStatusSQL, orderID, "not_paid"); err != nil {
			return fmt.Errorf("marking order %q not paid: %w", orderID, err)
		}
		return nil
	})
}

// resolve sets the result of a pending transaction and returns its order.
func resolve(ctx context.Context, tx pgx.Tx, id string, success bool, reason payment.Reason) (string, error) {
	var orderID string
	err := tx.QueryRow(ctx, resolveTransactionSQL, id, success, string(reason)).Scan(&orderID)
	if err == nil {
		return orderID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("resolving transaction %q: %w", id, err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, transactionExistsSQL, id).Scan(&exists); err != nil {
		return "", fmt.Errorf("checking transaction %q: %w", id, err)
	}
	if !exists {
		return "", payment.ErrNotFound
	}
	return "", payment.ErrAlreadyResolved
}

type stockItem struct {
	offerID  int64
	quantity int
}

func scanStockItem(row pgx.CollectableRow) (stockItem, error) {
	var (
		it       stockItem
		quantity int32
	)
	err := row.Scan(&it.offerID, &quantity)
	it.quantity = int(quantity)
	return it, err
}

func scanTransaction(row pgx.CollectableRow) (payment.Transaction, error) {
	var (
		t      payment.Transaction
		reason string
	)
	err := row.Scan(&t.ID, &t.OrderID, &t.CardNumber, &t.Total, &t.IsSuccess, &reason, &t.CreatedAt, &t.ResolvedAt)
	t.Reason = payment.Reason(reason)
	return t, err
}
