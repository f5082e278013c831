package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/market/internal/domain/discount"
)

const (
	listProductDiscountsSQL = `SELECT d.id, d.name, d.percentage, d.start_date, d.end_date,
		COALESCE(array_agg(i.product_id ORDER BY i.product_id) FILTER (WHERE i.product_id IS NOT NULL), '{}')
		FROM discount_products d
		LEFT JOIN discount_product_items i ON i.discount_id = d.id
		WHERE $1::date BETWEEN d.start_date AND d.end_date
		GROUP BY d.id ORDER BY d.id`

	listSetDiscountsSQL = `SELECT d.id, d.name, d.percentage, d.weight, d.start_date, d.end_date,
		COALESCE(array_agg(c.category_id ORDER BY c.category_id) FILTER (WHERE c.category_id IS NOT NULL), '{}')
		FROM discount_sets d
		LEFT JOIN discount_set_categories c ON c.discount_id = d.id
		WHERE $1::date BETWEEN d.start_date AND d.end_date
		GROUP BY d.id ORDER BY d.id`

	listCartDiscountsSQL = `SELECT id, name, percentage, weight, start_date, end_date, price_from, price_to
		FROM discount_carts
		WHERE $1::date BETWEEN start_date AND end_date
		ORDER BY id`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// ActiveOn loads the product, set and cart discounts valid on day. The three
// reads share one snapshot so a concurrent edit cannot mix versions.
func (r *DiscountRepository) ActiveOn(ctx context.Context, day time.Time) (*discount.Active, error) {
	var active discount.Active
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		var err error
		if active.Products, err = queryProductDiscounts(ctx, tx, day); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, listSetDiscountsSQL, day)
		if err != nil {
			return fmt.Errorf("listing set discounts: %w", err)
		}
		if active.Sets, err = pgx.CollectRows(rows, scanSetDiscount); err != nil {
			return fmt.Errorf("listing set discounts: %w", err)
		}

		rows, err = tx.Query(ctx, listCartDiscountsSQL, day)
		if err != nil {
			return fmt.Errorf("listing cart discounts: %w", err)
		}
		if active.Carts, err = pgx.CollectRows(rows, scanCartDiscount); err != nil {
			return fmt.Errorf("listing cart discounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &active, nil
}

// ListProductDiscounts returns the product discounts valid on day.
func (r *DiscountRepository) ListProductDiscounts(ctx context.Context, day time.Time) ([]discount.ProductDiscount, error) {
	return queryProductDiscounts(ctx, r.pool, day)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryProductDiscounts(ctx context.Context, q querier, day time.Time) ([]discount.ProductDiscount, error) {
	rows, err := q.Query(ctx, listProductDiscountsSQL, day)
	if err != nil {
		return nil, fmt.Errorf("listing product discounts: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanProductDiscount)
	if err != nil {
		return nil, fmt.Errorf("listing product discounts: %w", err)
	}
	return out, nil
}

func scanProductDiscount(row pgx.CollectableRow) (discount.ProductDiscount, error) {
	var (
		d          discount.ProductDiscount
		percentage int32
	)
	err := row.Scan(&d.ID, &d.Name, &percentage, &d.Period.Start, &d.Period.End, &d.ProductIDs)
	d.Percentage = int(percentage)
	return d, err
}

func scanSetDiscount(row pgx.CollectableRow) (discount.SetDiscount, error) {
	var (
		d          discount.SetDiscount
		percentage int32
	)
	err := row.Scan(&d.ID, &d.Name, &percentage, &d.Weight, &d.Period.Start, &d.Period.End, &d.CategoryIDs)
	d.Percentage = int(percentage)
	return d, err
}

func scanCartDiscount(row pgx.CollectableRow) (discount.CartDiscount, error) {
	var (
		d          discount.CartDiscount
		percentage int32
	)
	err := row.Scan(&d.ID, &d.Name, &percentage, &d.Weight, &d.Period.Start, &d.Period.End, &d.PriceFrom, &d.PriceTo)
	d.Percentage = int(percentage)
	return d, err
}
