package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/discount"
)

// ListDiscounts returns the product discounts running today.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.discounts.ProductDiscounts(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, d := range list {
			encodeProductDiscount(e, d)
		}
		e.ArrEnd()
	})
}

// ListSetDiscounts returns the set discounts running today.
func (h *Handler) ListSetDiscounts(w http.ResponseWriter, r *http.Request) {
	active, err := h.discounts.Active(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, d := range active.Sets {
			encodeSetDiscount(e, d)
		}
		e.ArrEnd()
	})
}

// ListCartDiscounts returns the cart discounts running today.
func (h *Handler) ListCartDiscounts(w http.ResponseWriter, r *http.Request) {
	active, err := h.discounts.Active(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, d := range active.Carts {
			encodeCartDiscount(e, d)
		}
		e.ArrEnd()
	})
}

// GetDiscount returns one running discount of the kind in the path:
// product, set or cart.
func (h *Handler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, r, &badRequestError{err: err})
		return
	}
	active, err := h.discounts.Active(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	var encode func(e *jx.Encoder)
	switch discount.Kind(r.PathValue("kind")) {
	case discount.KindProduct:
		var d discount.ProductDiscount
		d, err = active.Product(id)
		encode = func(e *jx.Encoder) { encodeProductDiscount(e, d) }
	case discount.KindSet:
		var d discount.SetDiscount
		d, err = active.Set(id)
		encode = func(e *jx.Encoder) { encodeSetDiscount(e, d) }
	case discount.KindCart:
		var d discount.CartDiscount
		d, err = active.Cart(id)
		encode = func(e *jx.Encoder) { encodeCartDiscount(e, d) }
	default:
		err = discount.ErrNotFound
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encode)
}

func encodeProductDiscount(e *jx.Encoder, d discount.ProductDiscount) {
	e.ObjStart()
	discountHeader(e, d.ID, d.Name, d.Percentage, d.Period)
	ids(e, "product_ids", d.ProductIDs)
	e.ObjEnd()
}

func encodeSetDiscount(e *jx.Encoder, d discount.SetDiscount) {
	e.ObjStart()
	discountHeader(e, d.ID, d.Name, d.Percentage, d.Period)
	field(e, "weight", func(e *jx.Encoder) { e.Num(jx.Num(d.Weight.String())) })
	ids(e, "category_ids", d.CategoryIDs)
	e.ObjEnd()
}

func encodeCartDiscount(e *jx.Encoder, d discount.CartDiscount) {
	e.ObjStart()
	discountHeader(e, d.ID, d.Name, d.Percentage, d.Period)
	field(e, "weight", func(e *jx.Encoder) { e.Num(jx.Num(d.Weight.String())) })
	field(e, "price_from", func(e *jx.Encoder) { money(e, d.PriceFrom) })
	field(e, "price_to", func(e *jx.Encoder) { money(e, d.PriceTo) })
	e.ObjEnd()
}

func discountHeader(e *jx.Encoder, id int64, name string, percentage int, p discount.Period) {
	field(e, "id", func(e *jx.Encoder) { e.Int64(id) })
	field(e, "name", func(e *jx.Encoder) { e.Str(name) })
	field(e, "percentage", func(e *jx.Encoder) { e.Int(percentage) })
	field(e, "start_date", func(e *jx.Encoder) { e.Str(p.Start.Format(time.DateOnly)) })
	field(e, "end_date", func(e *jx.Encoder) { e.Str(p.End.Format(time.DateOnly)) })
}

func ids(e *jx.Encoder, name string, list []int64) {
	e.FieldStart(name)
	e.ArrStart()
	for _, id := range list {
		e.Int64(id)
	}
	e.ArrEnd()
}
