package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/catalog"
)

// GetProduct returns a product with the offer of every shop selling it. The
// shop ids are the ones POST /api/cart/items accepts.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, r, &badRequestError{err: err})
		return
	}

	ctx := r.Context()
	p, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = &notFoundError{err: err}
		}
		fail(w, r, err)
		return
	}
	offers, err := h.catalog.ListOffers(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "id", func(e *jx.Encoder) { e.Int64(p.ID) })
		field(e, "name", func(e *jx.Encoder) { e.Str(p.Name) })
		field(e, "category_id", func(e *jx.Encoder) { e.Int64(p.CategoryID) })
		e.FieldStart("offers")
		e.ArrStart()
		for _, o := range offers {
			e.ObjStart()
			field(e, "id", func(e *jx.Encoder) { e.Int64(o.ID) })
			field(e, "shop_id", func(e *jx.Encoder) { e.Int64(o.ShopID) })
			field(e, "price", func(e *jx.Encoder) { money(e, o.Price) })
			field(e, "remaining", func(e *jx.Encoder) { e.Int(o.Remaining) })
			field(e, "in_stock", func(e *jx.Encoder) { e.Bool(o.Remaining > 0) })
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
