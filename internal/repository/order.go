package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/market/internal/domain/order"
)

const (
	lockOffersSQL = `SELECT id FROM offers WHERE id = ANY($1) FOR SHARE`

	createOrderSQL = `INSERT INTO orders (id, full_name, email, phone, delivery_type, city, address,
		payment_type, status, subtotal, discount, delivery_fee, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getOrderSQL = `SELECT id, full_name, email, phone, delivery_type, city, address,
		payment_type, status, subtotal, discount, delivery_fee, total_price, created_at
		FROM orders WHERE id = $1`

	getOrderItemsSQL = `SELECT offer_id, product_id, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`

	listOrdersByEmailSQL = `SELECT id, full_name, email, phone, delivery_type, city, address,
		payment_type, status, subtotal, discount, delivery_fee, total_price, created_at
		FROM orders WHERE email = $1 ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT order_id, offer_id, product_id, price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`
)

var orderItemColumns = []string{"order_id", "offer_id", "product_id", "price", "quantity"}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and its items in one transaction. The offers
// are share-locked first so none can be deleted while the items are written.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkOffers(ctx, tx, o.Items); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.Customer.FullName, o.Customer.Email, o.Customer.Phone,
			string(o.Checkout.Delivery), o.Checkout.City, o.Checkout.Address,
			string(o.Checkout.Payment), string(o.Status),
			o.Subtotal, o.Discount, o.DeliveryFee, o.Total, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		rows := make([][]any, 0, len(o.Items))
		for _, it := range o.Items {
			rows = append(rows, []any{o.ID, it.OfferID, it.ProductID, it.Price, it.Quantity})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, orderItemColumns, pgx.CopyFromRows(rows))
		if err != nil {
			if pgCode(err) == foreignKeyViolation {
				return &order.OfferVanishedError{}
			}
			return fmt.Errorf("creating items of order %q: %w", o.ID, err)
		}
		return nil
	})
}

func checkOffers(ctx context.Context, tx pgx.Tx, items []order.Item) error {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.OfferID)
	}

	rows, err := tx.Query(ctx, lockOffersSQL, ids)
	if err != nil {
		return fmt.Errorf("locking offers: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("locking offers: %w", err)
	}

	for _, id := range ids {
		if !slices.Contains(found, id) {
			return &order.OfferVanishedError{OfferID: id}
		}
	}
	return nil
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	return &o, nil
}

// ListByEmail returns the orders of a customer with their items, newest
// first.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByEmailSQL, email)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	byID := make(map[string]*order.Order, len(list))
	for i := range list {
		ids[i] = list[i].ID
		byID[list[i].ID] = &list[i]
	}
	rows, err = r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID  string
			it       order.Item
			quantity int32
		)
		if err := rows.Scan(&orderID, &it.OfferID, &it.ProductID, &it.Price, &quantity); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		it.Quantity = int(quantity)
		o := byID[orderID]
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	return list, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                          order.Order
		delivery, payment, status string
	)
	err := row.Scan(
		&o.ID, &o.Customer.FullName, &o.Customer.Email, &o.Customer.Phone,
		&delivery, &o.Checkout.City, &o.Checkout.Address, &payment, &status,
		&o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Total, &o.CreatedAt,
	)
	o.Checkout.Delivery = order.DeliveryType(delivery)
	o.Checkout.Payment = order.PaymentType(payment)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it       order.Item
		quantity int32
	)
	err := row.Scan(&it.OfferID, &it.ProductID, &it.Price, &quantity)
	it.Quantity = int(quantity)
	return it, err
}
