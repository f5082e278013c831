package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/market/internal/domain/order"
)

const (
	getSettingsSQL = `SELECT free_shipping_threshold, standard_fee, express_fee
		FROM site_settings LIMIT 1`

	upsertSettingsSQL = `INSERT INTO site_settings (id, free_shipping_threshold, standard_fee, express_fee)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			free_shipping_threshold = EXCLUDED.free_shipping_threshold,
			standard_fee = EXCLUDED.standard_fee,
			express_fee = EXCLUDED.express_fee`
)

var _ order.RatesProvider = (*SettingsRepository)(nil)

// SettingsRepository reads the site-wide shipping rates. When no settings
// row exists the configured fallback is returned.
type SettingsRepository struct {
	pool     *pgxpool.Pool
	fallback order.ShippingRates
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool, fallback order.ShippingRates) *SettingsRepository {
	return &SettingsRepository{pool: pool, fallback: fallback}
}

// Rates implements order.RatesProvider.
func (r *SettingsRepository) Rates(ctx context.Context) (order.ShippingRates, error) {
	var rates order.ShippingRates
	err := r.pool.QueryRow(ctx, getSettingsSQL).Scan(&rates.FreeThreshold, &rates.Standard, &rates.Express)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.fallback, nil
		}
		return order.ShippingRates{}, fmt.Errorf("getting site settings: %w", err)
	}
	return rates, nil
}

// Save stores rates as the site settings.
func (r *SettingsRepository) Save(ctx context.Context, rates order.ShippingRates) error {
	_, err := r.pool.Exec(ctx, upsertSettingsSQL, rates.FreeThreshold, rates.Standard, rates.Express)
	if err != nil {
		return fmt.Errorf("saving site settings: %w", err)
	}
	return nil
}
