// Package cart implements the session-scoped shopping cart.
//
// A Cart is opened for one session at the start of a request, mutated, and
// written back through a Store on every change. Carts are never shared between
// sessions or requests.
package cart

import (
	"context"
	"iter"
	"math"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/market/internal/domain/catalog"
)

// MaxQuantity bounds the quantity of a cart line. Order items store it as a
// 32-bit integer.
const MaxQuantity = math.MaxInt32

var (
	// ErrNotAvailable is returned when no shop offers the requested product.
	ErrNotAvailable = errors.New("product is not available in any shop")
	// ErrInvalidQuantity is returned for a quantity below one or above
	// MaxQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
)

// Line is one product entry in a cart. UnitPrice is the offer price at the
// time the product was first added.
type Line struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	OfferID     int64           `json:"offer_id"`
	ShopID      int64           `json:"shop_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Total returns UnitPrice times Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Store persists cart lines per session.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]Line, error)
	Save(ctx context.Context, sessionID string, lines []Line) error
}

// Cart is the cart of a single session.
type Cart struct {
	svc       *Service
	sessionID string
	lines     []Line
}

// Add puts quantity units of a product into the cart. A zero shopID lets the
// service's OfferPicker choose among the shops selling the product. With
// replace the quantity overwrites the current one, otherwise it is added.
func (c *Cart) Add(ctx context.Context, productID, shopID int64, quantity int, replace bool) error {
	if quantity <= 0 || quantity > MaxQuantity {
		return ErrInvalidQuantity
	}

	idx := c.index(productID)
	if !replace && idx >= 0 && c.lines[idx].Quantity > MaxQuantity-quantity {
		return ErrInvalidQuantity
	}
	if idx < 0 || (shopID != 0 && shopID != c.lines[idx].ShopID) {
		line, err := c.svc.newLine(ctx, productID, shopID)
		if err != nil {
			return err
		}
		if idx < 0 {
			c.lines = append(c.lines, line)
			idx = len(c.lines) - 1
		} else {
			line.Quantity = c.lines[idx].Quantity
			c.lines[idx] = line
		}
	}

	if replace {
		c.lines[idx].Quantity = quantity
	} else {
		c.lines[idx].Quantity += quantity
	}
	return c.save(ctx)
}

// Remove drops a product from the cart. Removing an absent product is a no-op.
func (c *Cart) Remove(ctx context.Context, productID int64) error {
	idx := c.index(productID)
	if idx < 0 {
		return nil
	}
	c.lines = slices.Delete(c.lines, idx, idx+1)
	return c.save(ctx)
}

// Clear empties the cart and persists the empty state.
func (c *Cart) Clear(ctx context.Context) error {
	c.lines = nil
	return c.save(ctx)
}

// Lines yields the cart lines in insertion order. The sequence may be ranged
// over any number of times.
func (c *Cart) Lines() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, l := range c.lines {
			if !yield(l) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the cart lines.
func (c *Cart) Snapshot() []Line {
	return slices.Clone(c.lines)
}

// Get returns the line for a product.
func (c *Cart) Get(productID int64) (Line, bool) {
	idx := c.index(productID)
	if idx < 0 {
		return Line{}, false
	}
	return c.lines[idx], true
}

// Len returns the total number of units in the cart.
func (c *Cart) Len() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Subtotal returns the sum of line totals before discounts.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Shops returns the distinct shops the cart buys from, in first-seen order.
func (c *Cart) Shops() []int64 {
	var shops []int64
	for _, l := range c.lines {
		if !slices.Contains(shops, l.ShopID) {
			shops = append(shops, l.ShopID)
		}
	}
	return shops
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ProductID == productID })
}

func (c *Cart) save(ctx context.Context) error {
	if err := c.svc.store.Save(ctx, c.sessionID, c.lines); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// Service opens carts and resolves offers for them.
type Service struct {
	store   Store
	catalog catalog.Repository
	picker  catalog.OfferPicker
}

// NewService creates a cart Service.
func NewService(store Store, products catalog.Repository, picker catalog.OfferPicker) *Service {
	if picker == nil {
		picker = catalog.RandomPicker{}
	}
	return &Service{store: store, catalog: products, picker: picker}
}

// Open loads the cart of a session. An unknown session yields an empty cart.
func (s *Service) Open(ctx context.Context, sessionID string) (*Cart, error) {
	lines, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return &Cart{svc: s, sessionID: sessionID, lines: lines}, nil
}

func (s *Service) newLine(ctx context.Context, productID, shopID int64) (Line, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Line{}, err
	}

	var offer catalog.Offer
	if shopID != 0 {
		o, err := s.catalog.GetOffer(ctx, productID, shopID)
		if errors.Is(err, catalog.ErrOfferNotFound) {
			return Line{}, ErrNotAvailable
		}
		if err != nil {
			return Line{}, errors.Wrap(err, "get offer")
		}
		offer = *o
	} else {
		offers, err := s.catalog.ListOffers(ctx, productID)
		if err != nil {
			return Line{}, errors.Wrap(err, "list offers")
		}
		if len(offers) == 0 {
			return Line{}, ErrNotAvailable
		}
		offer = s.picker.Pick(offers)
	}

	return Line{
		ProductID:   p.ID,
		ProductName: p.Name,
		OfferID:     offer.ID,
		ShopID:      offer.ShopID,
		UnitPrice:   offer.Price,
	}, nil
}
