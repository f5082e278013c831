package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/order"
)

// GetOrder returns an order of the authenticated customer. Orders of other
// customers are reported as not found.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	customer, err := h.verifier.Customer(r.Header.Get("Authorization"))
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if o.Customer.Email != customer.Email {
		fail(w, r, order.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns the order history of the authenticated customer,
// newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customer, err := h.verifier.Customer(r.Header.Get("Authorization"))
	if err != nil {
		fail(w, r, err)
		return
	}

	list, err := h.orders.History(r.Context(), customer.Email)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range list {
			encodeOrder(e, &list[i])
		}
		e.ArrEnd()
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	field(e, "id", func(e *jx.Encoder) { e.Str(o.ID) })
	field(e, "status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	field(e, "full_name", func(e *jx.Encoder) { e.Str(o.Customer.FullName) })
	field(e, "email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
	field(e, "phone", func(e *jx.Encoder) { e.Str(o.Customer.Phone) })
	field(e, "delivery", func(e *jx.Encoder) { e.Str(string(o.Checkout.Delivery)) })
	field(e, "city", func(e *jx.Encoder) { e.Str(o.Checkout.City) })
	field(e, "address", func(e *jx.Encoder) { e.Str(o.Checkout.Address) })
	field(e, "payment", func(e *jx.Encoder) { e.Str(string(o.Checkout.Payment)) })
	field(e, "subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
	field(e, "discount", func(e *jx.Encoder) { money(e, o.Discount) })
	field(e, "delivery_fee", func(e *jx.Encoder) { money(e, o.DeliveryFee) })
	field(e, "total", func(e *jx.Encoder) { money(e, o.Total) })
	field(e, "created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		field(e, "offer_id", func(e *jx.Encoder) { e.Int64(it.OfferID) })
		field(e, "product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
		field(e, "price", func(e *jx.Encoder) { money(e, it.Price) })
		field(e, "quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
