// Package handler implements the JSON HTTP API of the checkout service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/market/internal/domain/auth"
	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/catalog"
	"github.com/xenking/market/internal/domain/discount"
	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "sessionid"

// Sessions is the per-visitor state the handlers read and write.
type Sessions interface {
	Get(ctx context.Context, id, field string) (string, error)
	Set(ctx context.Context, id string, pairs ...string) error
	SetOnce(ctx context.Context, id, field, value string) (bool, error)
	Delete(ctx context.Context, id string, fields ...string) error
	Checkout(ctx context.Context, id string) (order.Checkout, error)
	SaveDelivery(ctx context.Context, id string, delivery order.DeliveryType, city, address string) error
	SavePayment(ctx context.Context, id string, payment order.PaymentType) error
	ClearCheckout(ctx context.Context, id string) error
	StartPayment(ctx context.Context, id, txID string) error
}

var _ Sessions = (*session.Store)(nil)

// Discounts lists the discounts running today.
type Discounts interface {
	ProductDiscounts(ctx context.Context) ([]discount.ProductDiscount, error)
	Active(ctx context.Context) (*discount.Active, error)
}

// Config holds non-dependency handler settings.
type Config struct {
	// SessionTTL is the cookie lifetime.
	SessionTTL time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Handler serves the catalog, cart, checkout, order and payment endpoints.
type Handler struct {
	catalog   catalog.Repository
	carts     *cart.Service
	orders    *order.Service
	payments  *payment.Service
	discounts Discounts
	sessions  Sessions
	verifier  *auth.Verifier
	cfg       Config
}

// New constructs a Handler.
func New(
	cfg Config,
	products catalog.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
	discounts Discounts,
	sessions Sessions,
	verifier *auth.Verifier,
) *Handler {
	return &Handler{
		catalog:   products,
		carts:     carts,
		orders:    orders,
		payments:  payments,
		discounts: discounts,
		sessions:  sessions,
		verifier:  verifier,
		cfg:       cfg,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("POST /api/checkout/delivery", h.SetDelivery)
	mux.HandleFunc("POST /api/checkout/payment", h.SetPayment)
	mux.HandleFunc("POST /api/checkout/confirm", h.Confirm)

	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.Pay)
	mux.HandleFunc("GET /api/payment/progress", h.PaymentProgress)

	mux.HandleFunc("GET /api/discounts", h.ListDiscounts)
	mux.HandleFunc("GET /api/discounts/sets", h.ListSetDiscounts)
	mux.HandleFunc("GET /api/discounts/carts", h.ListCartDiscounts)
	mux.HandleFunc("GET /api/discounts/{kind}/{id}", h.GetDiscount)
}

// sessionID returns the visitor's session id, issuing a new cookie when the
// request has none or an invalid one.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
		return c.Value
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
