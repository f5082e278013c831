package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/market/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, name, category_id FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, category_id FROM products WHERE id = ANY($1) ORDER BY id`

	getOfferSQL = `SELECT id, shop_id, product_id, price, remaining_stock
		FROM offers WHERE product_id = $1 AND shop_id = $2`

	listOffersSQL = `SELECT id, shop_id, product_id, price, remaining_stock
		FROM offers WHERE product_id = $1 ORDER BY id`

	getOffersByIDsSQL = `SELECT id, shop_id, product_id, price, remaining_stock
		FROM offers WHERE id = ANY($1) ORDER BY id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns a single product by its identifier.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetProductsByIDs returns products matching any of the given IDs.
func (r *CatalogRepository) GetProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetOffer returns the offer a shop lists for a product.
func (r *CatalogRepository) GetOffer(ctx context.Context, productID, shopID int64) (*catalog.Offer, error) {
	rows, err := r.pool.Query(ctx, getOfferSQL, productID, shopID)
	if err != nil {
		return nil, fmt.Errorf("getting offer of shop %d for product %d: %w", shopID, productID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrOfferNotFound
		}
		return nil, fmt.Errorf("getting offer of shop %d for product %d: %w", shopID, productID, err)
	}
	return &o, nil
}

// ListOffers returns every offer for a product.
func (r *CatalogRepository) ListOffers(ctx context.Context, productID int64) ([]catalog.Offer, error) {
	rows, err := r.pool.Query(ctx, listOffersSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing offers for product %d: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

// GetOffersByIDs returns offers matching any of the given IDs.
func (r *CatalogRepository) GetOffersByIDs(ctx context.Context, ids []int64) ([]catalog.Offer, error) {
	rows, err := r.pool.Query(ctx, getOffersByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting offers by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID)
	return p, err
}

func scanOffer(row pgx.CollectableRow) (catalog.Offer, error) {
	var (
		o         catalog.Offer
		remaining int32
	)
	err := row.Scan(&o.ID, &o.ShopID, &o.ProductID, &o.Price, &remaining)
	o.Remaining = int(remaining)
	return o, err
}
