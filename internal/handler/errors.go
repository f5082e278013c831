package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/market/internal/domain/auth"
	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/catalog"
	"github.com/xenking/market/internal/domain/discount"
	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/domain/payment"
)

// notFoundError marks a lookup miss by the resource in the path, as opposed
// to a reference in the request body.
type notFoundError struct {
	err error
}

func (e *notFoundError) Error() string { return e.err.Error() }
func (e *notFoundError) Unwrap() error { return e.err }

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		badReq     *badRequestError
		notFound   *notFoundError
		validation *order.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &badReq),
		errors.As(err, &validation),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, payment.ErrMalformedCard):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, discount.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrOrderCreationFailed),
		errors.Is(err, payment.ErrOrderNotPayable),
		errors.Is(err, payment.ErrPaymentPending):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrOfferNotFound),
		errors.Is(err, cart.ErrNotAvailable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err as a {"code", "message"} response. Internal errors are
// logged and their message hidden.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}
	var validation *order.ValidationError
	if errors.As(err, &validation) {
		msg = validation.Error()
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "code", func(e *jx.Encoder) { e.Int(code) })
		field(e, "message", func(e *jx.Encoder) { e.Str(msg) })
		e.ObjEnd()
	})
}
