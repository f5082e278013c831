package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no running discount has the requested id.
var ErrNotFound = errors.New("discount not found")

// Kind identifies which discount table a discount came from.
type Kind string

const (
	// KindProduct is a discount on listed products.
	KindProduct Kind = "product"
	// KindSet is a discount on carts made only of products from given categories.
	KindSet Kind = "set"
	// KindCart is a discount on carts whose subtotal falls in a price range.
	KindCart Kind = "cart"
)

// Period is an inclusive calendar date range. Only the date part of Start and
// End is meaningful.
type Period struct {
	Start time.Time
	End   time.Time
}

// ActiveOn reports whether day falls within the period, both ends included.
func (p Period) ActiveOn(day time.Time) bool {
	d := dateOf(day)
	return !d.Before(dateOf(p.Start)) && !d.After(dateOf(p.End))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ProductDiscount reduces the price of the listed products.
type ProductDiscount struct {
	ID         int64
	Name       string
	Percentage int
	Period     Period
	ProductIDs []int64
}

// SetDiscount applies when every product in the cart belongs to one of the
// listed categories.
type SetDiscount struct {
	ID          int64
	Name        string
	Percentage  int
	Weight      decimal.Decimal
	Period      Period
	CategoryIDs []int64
}

// CartDiscount applies when the cart subtotal is within [PriceFrom, PriceTo].
type CartDiscount struct {
	ID         int64
	Name       string
	Percentage int
	Weight     decimal.Decimal
	Period     Period
	PriceFrom  decimal.Decimal
	PriceTo    decimal.Decimal
}

// Active groups the discounts whose period covers a given day.
type Active struct {
	Products []ProductDiscount
	Sets     []SetDiscount
	Carts    []CartDiscount
}

// Product returns the running product discount with the given id.
func (a *Active) Product(id int64) (ProductDiscount, error) {
	return find(a.Products, func(d ProductDiscount) bool { return d.ID == id })
}

// Set returns the running set discount with the given id.
func (a *Active) Set(id int64) (SetDiscount, error) {
	return find(a.Sets, func(d SetDiscount) bool { return d.ID == id })
}

// Cart returns the running cart discount with the given id.
func (a *Active) Cart(id int64) (CartDiscount, error) {
	return find(a.Carts, func(d CartDiscount) bool { return d.ID == id })
}

func find[T any](list []T, match func(T) bool) (T, error) {
	for _, d := range list {
		if match(d) {
			return d, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

// Item is a cart line as seen by the resolver.
type Item struct {
	ProductID  int64
	CategoryID int64
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Applied describes the single set or cart discount chosen for a cart.
type Applied struct {
	Kind       Kind
	ID         int64
	Name       string
	Percentage int
	Weight     decimal.Decimal
}

// Result is the outcome of resolving discounts for a cart.
type Result struct {
	// Gross is the sum of unit price times quantity with no discount.
	Gross decimal.Decimal
	// Subtotal is Gross after product discounts.
	Subtotal decimal.Decimal
	// Applied is nil when no set or cart discount qualified.
	Applied *Applied
	// Total is the final price of the goods.
	Total decimal.Decimal
}

// Discount returns the total amount taken off the gross price.
func (r Result) Discount() decimal.Decimal {
	return r.Gross.Sub(r.Total)
}

// Repository provides discount records.
type Repository interface {
	// ActiveOn returns the discounts whose period covers day.
	ActiveOn(ctx context.Context, day time.Time) (*Active, error)
	ListProductDiscounts(ctx context.Context, day time.Time) ([]ProductDiscount, error)
}
