package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrOfferNotFound is returned when a shop has no offer for a product.
	ErrOfferNotFound = errors.New("offer not found")
)

// Product is a catalog item. Prices live on offers, not on the product.
type Product struct {
	ID         int64
	Name       string
	CategoryID int64
}

// Shop is a seller listing offers in the marketplace.
type Shop struct {
	ID   int64
	Name string
}

// Offer is a (shop, product) listing with its own price and remaining stock.
// There is at most one offer per shop and product.
type Offer struct {
	ID        int64
	ShopID    int64
	ProductID int64
	Price     decimal.Decimal
	Remaining int
}

// Repository defines read operations for the catalog.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// GetOffer returns the offer of the given shop for the product, or
	// ErrOfferNotFound.
	GetOffer(ctx context.Context, productID, shopID int64) (*Offer, error)
	ListOffers(ctx context.Context, productID int64) ([]Offer, error)
	GetOffersByIDs(ctx context.Context, ids []int64) ([]Offer, error)
}
