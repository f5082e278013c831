package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/order"
)

// SetDelivery stores the delivery step {delivery, city, address}.
func (h *Handler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	var delivery, city, address string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "delivery":
			delivery, err = d.Str()
		case "city":
			city, err = d.Str()
		case "address":
			address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	// Validate the step on its own; payment is chosen later.
	step := order.Checkout{
		Delivery: order.DeliveryType(delivery),
		City:     city,
		Address:  address,
		Payment:  order.PaymentCard,
	}
	if err := step.Validate(); err != nil {
		fail(w, r, err)
		return
	}

	sid := h.sessionID(w, r)
	if err := h.sessions.SaveDelivery(r.Context(), sid, step.Delivery, city, address); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPayment stores the payment step {payment}.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var payment string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key == "payment" {
			var err error
			payment, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	switch p := order.PaymentType(payment); p {
	case order.PaymentCard, order.PaymentRandom:
		if err := h.sessions.SavePayment(r.Context(), h.sessionID(w, r), p); err != nil {
			fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		fail(w, r, &order.ValidationError{Field: "payment", Reason: "unknown payment type " + payment})
	}
}

// Confirm places the order from the cart and the saved checkout steps. The
// customer comes from the bearer token. The cart is kept until payment is
// submitted.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	customer, err := h.verifier.Customer(r.Header.Get("Authorization"))
	if err != nil {
		fail(w, r, err)
		return
	}

	sid := h.sessionID(w, r)
	c, err := h.carts.Open(r.Context(), sid)
	if err != nil {
		fail(w, r, err)
		return
	}
	if c.IsEmpty() {
		fail(w, r, order.ErrEmptyCart)
		return
	}
	checkout, err := h.sessions.Checkout(r.Context(), sid)
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Lines:    c.Snapshot(),
		Customer: customer,
		Checkout: checkout,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.sessions.ClearCheckout(r.Context(), sid); err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}
