package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/catalog"
	"github.com/xenking/market/internal/domain/discount"
)

// DiscountResolver computes discounted totals for cart items.
type DiscountResolver interface {
	Resolve(ctx context.Context, items []discount.Item) (*discount.Result, error)
}

// Quote is the price breakdown of a cart for a delivery choice.
type Quote struct {
	Discount    discount.Result
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	Shops       int
	Items       []Item
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Lines    []cart.Line
	Customer Customer
	Checkout Checkout
}

// Service encapsulates checkout business logic.
type Service struct {
	catalog   catalog.Repository
	discounts DiscountResolver
	rates     RatesProvider
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products catalog.Repository,
	discounts DiscountResolver,
	rates RatesProvider,
	orders Repository,
) *Service {
	return &Service{
		catalog:   products,
		discounts: discounts,
		rates:     rates,
		orders:    orders,
		now:       time.Now,
	}
}

// Quote prices the cart lines: discounts first, then the delivery fee. Every
// offer is re-read so a vanished offer fails here rather than at payment.
func (s *Service) Quote(ctx context.Context, lines []cart.Line, delivery DeliveryType) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	offerIDs := make([]int64, len(lines))
	productIDs := make([]int64, len(lines))
	for i, l := range lines {
		offerIDs[i] = l.OfferID
		productIDs[i] = l.ProductID
	}

	offers, err := s.catalog.GetOffersByIDs(ctx, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("get offers: %w", err)
	}
	offerMap := make(map[int64]catalog.Offer, len(offers))
	for _, o := range offers {
		offerMap[o.ID] = o
	}

	products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	productMap := make(map[int64]catalog.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	var shops []int64
	items := make([]Item, len(lines))
	discountItems := make([]discount.Item, len(lines))
	for i, l := range lines {
		o, ok := offerMap[l.OfferID]
		if !ok || o.ProductID != l.ProductID {
			return nil, &OfferVanishedError{OfferID: l.OfferID}
		}
		p, ok := productMap[l.ProductID]
		if !ok {
			return nil, &OfferVanishedError{OfferID: l.OfferID}
		}
		if !slices.Contains(shops, o.ShopID) {
			shops = append(shops, o.ShopID)
		}

		items[i] = Item{
			OfferID:   o.ID,
			ProductID: l.ProductID,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
		}
		discountItems[i] = discount.Item{
			ProductID:  l.ProductID,
			CategoryID: p.CategoryID,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
		}
	}

	res, err := s.discounts.Resolve(ctx, discountItems)
	if err != nil {
		return nil, fmt.Errorf("resolve discounts: %w", err)
	}

	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, fmt.Errorf("get shipping rates: %w", err)
	}
	fee := DeliveryFee(rates, delivery, res.Subtotal, len(shops))

	return &Quote{
		Discount:    *res,
		DeliveryFee: fee,
		Total:       res.Total.Add(fee).Round(2),
		Shops:       len(shops),
		Items:       items,
	}, nil
}

// PlaceOrder validates the checkout, prices the cart and persists the order
// with its items in one transaction. The cart and stock are left untouched;
// both are settled by payment.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := req.Checkout.Validate(); err != nil {
		return nil, err
	}
	if req.Customer.FullName == "" || req.Customer.Email == "" {
		return nil, &ValidationError{Field: "customer", Reason: "name and email required"}
	}

	q, err := s.Quote(ctx, req.Lines, req.Checkout.Delivery)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:          uuid.New().String(),
		Customer:    req.Customer,
		Checkout:    req.Checkout,
		Status:      StatusCreated,
		Subtotal:    q.Discount.Gross,
		Discount:    q.Discount.Discount().Round(2),
		DeliveryFee: q.DeliveryFee,
		Total:       q.Total,
		CreatedAt:   s.now().UTC(),
		Items:       q.Items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// History returns the orders of a customer, newest first.
func (s *Service) History(ctx context.Context, email string) ([]Order, error) {
	list, err := s.orders.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}
