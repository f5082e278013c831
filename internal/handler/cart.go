package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/order"
)

// GetCart returns the cart with its price breakdown for the delivery type
// chosen so far (regular when none).
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sid := h.sessionID(w, r)
	c, err := h.carts.Open(r.Context(), sid)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, sid, c)
}

// AddCartItem handles {product_id, shop_id?, quantity?, replace?}.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID, shopID int64
		quantity          = 1
		replace           bool
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Int64()
		case "shop_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			shopID, err = d.Int64()
		case "quantity":
			quantity, err = d.Int()
		case "replace":
			replace, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if productID <= 0 {
		fail(w, r, &order.ValidationError{Field: "product_id", Reason: "required"})
		return
	}

	sid := h.sessionID(w, r)
	c, err := h.carts.Open(r.Context(), sid)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.Add(r.Context(), productID, shopID, quantity, replace); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, sid, c)
}

// RemoveCartItem removes a product. Removing an absent product succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		fail(w, r, &badRequestError{err: errors.Wrap(err, "product id")})
		return
	}

	sid := h.sessionID(w, r)
	c, err := h.carts.Open(r.Context(), sid)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.Remove(r.Context(), productID); err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, r, sid, c)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Open(r.Context(), h.sessionID(w, r))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, sid string, c *cart.Cart) {
	var q *order.Quote
	if !c.IsEmpty() {
		checkout, err := h.sessions.Checkout(r.Context(), sid)
		if err != nil {
			fail(w, r, err)
			return
		}
		delivery := checkout.Delivery
		if delivery == "" {
			delivery = order.DeliveryRegular
		}
		if q, err = h.orders.Quote(r.Context(), c.Snapshot(), delivery); err != nil {
			fail(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("lines")
		e.ArrStart()
		for l := range c.Lines() {
			encodeLine(e, l)
		}
		e.ArrEnd()
		field(e, "count", func(e *jx.Encoder) { e.Int(c.Len()) })
		field(e, "subtotal", func(e *jx.Encoder) { money(e, c.Subtotal()) })
		e.FieldStart("quote")
		if q == nil {
			e.Null()
		} else {
			encodeQuote(e, q)
		}
		e.ObjEnd()
	})
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	field(e, "product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
	field(e, "product_name", func(e *jx.Encoder) { e.Str(l.ProductName) })
	field(e, "offer_id", func(e *jx.Encoder) { e.Int64(l.OfferID) })
	field(e, "shop_id", func(e *jx.Encoder) { e.Int64(l.ShopID) })
	field(e, "quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
	field(e, "unit_price", func(e *jx.Encoder) { money(e, l.UnitPrice) })
	field(e, "total", func(e *jx.Encoder) { money(e, l.Total()) })
	e.ObjEnd()
}

func encodeQuote(e *jx.Encoder, q *order.Quote) {
	res := q.Discount
	e.ObjStart()
	field(e, "gross", func(e *jx.Encoder) { money(e, res.Gross) })
	field(e, "subtotal", func(e *jx.Encoder) { money(e, res.Subtotal) })
	field(e, "discount", func(e *jx.Encoder) { money(e, res.Discount()) })
	e.FieldStart("applied")
	if a := res.Applied; a == nil {
		e.Null()
	} else {
		e.ObjStart()
		field(e, "kind", func(e *jx.Encoder) { e.Str(string(a.Kind)) })
		field(e, "id", func(e *jx.Encoder) { e.Int64(a.ID) })
		field(e, "name", func(e *jx.Encoder) { e.Str(a.Name) })
		field(e, "percentage", func(e *jx.Encoder) { e.Int(a.Percentage) })
		e.ObjEnd()
	}
	field(e, "shops", func(e *jx.Encoder) { e.Int(q.Shops) })
	field(e, "delivery_fee", func(e *jx.Encoder) { money(e, q.DeliveryFee) })
	field(e, "total", func(e *jx.Encoder) { money(e, q.Total) })
	e.ObjEnd()
}
