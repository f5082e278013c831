package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// ShippingRates are the site-wide delivery prices.
type ShippingRates struct {
	// FreeThreshold is the subtotal from which regular delivery from a single
	// shop is free.
	FreeThreshold decimal.Decimal
	Standard      decimal.Decimal
	Express       decimal.Decimal
}

// RatesProvider returns the current shipping rates.
type RatesProvider interface {
	Rates(ctx context.Context) (ShippingRates, error)
}

// StaticRates is a RatesProvider returning fixed rates.
type StaticRates ShippingRates

// Rates implements RatesProvider.
func (s StaticRates) Rates(context.Context) (ShippingRates, error) {
	return ShippingRates(s), nil
}

// DeliveryFee returns the surcharge for delivering goods worth subtotal from
// the given number of shops.
func DeliveryFee(rates ShippingRates, delivery DeliveryType, subtotal decimal.Decimal, shops int) decimal.Decimal {
	if delivery == DeliveryExpress {
		return rates.Express
	}
	if subtotal.LessThan(rates.FreeThreshold) || shops > 1 {
		return rates.Standard
	}
	return decimal.Zero
}
