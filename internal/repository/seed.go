package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Seed is a catalogue snapshot with explicit ids. Applying it twice yields
// the same rows.
type Seed struct {
	Categories []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
	} `json:"categories"`
	Products []struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		CategoryID int64  `json:"category_id"`
	} `json:"products"`
	Shops []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"shops"`
	Offers []struct {
		ID             int64           `json:"id"`
		ShopID         int64           `json:"shop_id"`
		ProductID      int64           `json:"product_id"`
		Price          decimal.Decimal `json:"price"`
		RemainingStock int             `json:"remaining_stock"`
	} `json:"offers"`
	ProductDiscounts []struct {
		seedDiscount
		ProductIDs []int64 `json:"product_ids"`
	} `json:"product_discounts"`
	SetDiscounts []struct {
		seedDiscount
		Weight      decimal.Decimal `json:"weight"`
		CategoryIDs []int64         `json:"category_ids"`
	} `json:"set_discounts"`
	CartDiscounts []struct {
		seedDiscount
		Weight    decimal.Decimal `json:"weight"`
		PriceFrom decimal.Decimal `json:"price_from"`
		PriceTo   decimal.Decimal `json:"price_to"`
	} `json:"cart_discounts"`
	Settings *struct {
		FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
		StandardFee           decimal.Decimal `json:"standard_fee"`
		ExpressFee            decimal.Decimal `json:"express_fee"`
	} `json:"settings"`
}

type seedDiscount struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func (d seedDiscount) period() (start, end time.Time, err error) {
	if start, err = time.Parse(time.DateOnly, d.StartDate); err != nil {
		return start, end, fmt.Errorf("discount %d start_date: %w", d.ID, err)
	}
	if end, err = time.Parse(time.DateOnly, d.EndDate); err != nil {
		return start, end, fmt.Errorf("discount %d end_date: %w", d.ID, err)
	}
	return start, end, nil
}

const (
	seedCategorySQL = `INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`
	seedProductSQL = `INSERT INTO products (id, name, category_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category_id = EXCLUDED.category_id`
	seedShopSQL = `INSERT INTO shops (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	seedOfferSQL = `INSERT INTO offers (id, shop_id, product_id, price, remaining_stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			shop_id = EXCLUDED.shop_id,
			product_id = EXCLUDED.product_id,
			price = EXCLUDED.price,
			remaining_stock = EXCLUDED.remaining_stock`

	seedProductDiscountSQL = `INSERT INTO discount_products (id, name, percentage, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, percentage = EXCLUDED.percentage,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`
	clearProductDiscountItemsSQL = `DELETE FROM discount_product_items WHERE discount_id = $1`
	seedProductDiscountItemsSQL  = `INSERT INTO discount_product_items (discount_id, product_id)
		SELECT $1, unnest($2::bigint[])`

	seedSetDiscountSQL = `INSERT INTO discount_sets (id, name, percentage, weight, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, percentage = EXCLUDED.percentage, weight = EXCLUDED.weight,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`
	clearSetCategoriesSQL = `DELETE FROM discount_set_categories WHERE discount_id = $1`
	seedSetCategoriesSQL  = `INSERT INTO discount_set_categories (discount_id, category_id)
		SELECT $1, unnest($2::bigint[])`

	seedCartDiscountSQL = `INSERT INTO discount_carts
		(id, name, percentage, weight, start_date, end_date, price_from, price_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, percentage = EXCLUDED.percentage, weight = EXCLUDED.weight,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			price_from = EXCLUDED.price_from, price_to = EXCLUDED.price_to`
)

// Sequences moved past the explicit ids written by a seed.
var seededSequences = []string{
	"categories", "products", "shops", "offers",
	"discount_products", "discount_sets", "discount_carts",
}

// DecodeSeed reads a Seed from JSON.
func DecodeSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	return &s, nil
}

// ApplySeed upserts the seed in one transaction.
func ApplySeed(ctx context.Context, pool *pgxpool.Pool, s *Seed) error {
	b := &pgx.Batch{}
	for _, c := range s.Categories {
		b.Queue(seedCategorySQL, c.ID, c.Name, c.ParentID)
	}
	for _, p := range s.Products {
		b.Queue(seedProductSQL, p.ID, p.Name, p.CategoryID)
	}
	for _, sh := range s.Shops {
		b.Queue(seedShopSQL, sh.ID, sh.Name)
	}
	for _, o := range s.Offers {
		b.Queue(seedOfferSQL, o.ID, o.ShopID, o.ProductID, o.Price, o.RemainingStock)
	}
	for _, d := range s.ProductDiscounts {
		start, end, err := d.period()
		if err != nil {
			return err
		}
		b.Queue(seedProductDiscountSQL, d.ID, d.Name, d.Percentage, start, end)
		b.Queue(clearProductDiscountItemsSQL, d.ID)
		b.Queue(seedProductDiscountItemsSQL, d.ID, d.ProductIDs)
	}
	for _, d := range s.SetDiscounts {
		start, end, err := d.period()
		if err != nil {
			return err
		}
		b.Queue(seedSetDiscountSQL, d.ID, d.Name, d.Percentage, d.Weight, start, end)
		b.Queue(clearSetCategoriesSQL, d.ID)
		b.Queue(seedSetCategoriesSQL, d.ID, d.CategoryIDs)
	}
	for _, d := range s.CartDiscounts {
		start, end, err := d.period()
		if err != nil {
			return err
		}
		b.Queue(seedCartDiscountSQL, d.ID, d.Name, d.Percentage, d.Weight, start, end, d.PriceFrom, d.PriceTo)
	}
	if st := s.Settings; st != nil {
		b.Queue(upsertSettingsSQL, st.FreeShippingThreshold, st.StandardFee, st.ExpressFee)
	}
	for _, table := range seededSequences {
		b.Queue(fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT MAX(id) FROM %[1]s), 1))`,
			table,
		))
	}

	return inTx(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("applying seed: %w", err)
		}
		return nil
	})
}
