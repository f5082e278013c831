package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/session"
)

const progressPath = "/api/payment/progress"

// Pay records a payment attempt {card_number} for an order of the
// authenticated customer and clears the cart. Orders paid from a random
// account need no card number. Settlement starts on the first progress
// request.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	customer, err := h.verifier.Customer(r.Header.Get("Authorization"))
	if err != nil {
		fail(w, r, err)
		return
	}

	var card string
	err = decodeObject(r, func(d *jx.Decoder, key string) error {
		if key == "card_number" {
			var err error
			card, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	orderID := r.PathValue("id")
	o, err := h.orders.Get(ctx, orderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if o.Customer.Email != customer.Email {
		fail(w, r, order.ErrNotFound)
		return
	}

	var tx *payment.Transaction
	if card == "" && o.Checkout.Payment == order.PaymentRandom {
		tx, err = h.payments.SubmitRandom(ctx, o.ID)
	} else {
		tx, err = h.payments.Submit(ctx, o.ID, card)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	sid := h.sessionID(w, r)
	if err := h.sessions.StartPayment(ctx, sid, tx.ID); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.carts.Open(ctx, sid)
	if err == nil {
		err = c.Clear(ctx)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Location", progressPath)
	writeJSON(w, http.StatusAccepted, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "transaction_id", func(e *jx.Encoder) { e.Str(tx.ID) })
		field(e, "order_id", func(e *jx.Encoder) { e.Str(tx.OrderID) })
		field(e, "total", func(e *jx.Encoder) { money(e, tx.Total) })
		field(e, "progress_url", func(e *jx.Encoder) { e.Str(progressPath) })
		e.ObjEnd()
	})
}

// PaymentProgress reports the payment of the session. The first request
// after a payment is submitted hands it to the payment queue.
func (h *Handler) PaymentProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := h.sessionID(w, r)

	txID, err := h.sessions.Get(ctx, sid, session.FieldPaymentTx)
	if err != nil {
		fail(w, r, err)
		return
	}
	if txID == "" {
		fail(w, r, payment.ErrNotFound)
		return
	}

	first, err := h.sessions.SetOnce(ctx, sid, session.FieldPaymentStarted, "1")
	if err != nil {
		fail(w, r, err)
		return
	}
	if first {
		if err := h.payments.Start(ctx, txID); err != nil {
			// Let the next progress request retry the hand-off.
			if derr := h.sessions.Delete(ctx, sid, session.FieldPaymentStarted); derr != nil {
				err = errors.Join(err, derr)
			}
			fail(w, r, err)
			return
		}
	}

	out, err := h.payments.Progress(ctx, txID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !out.Pending {
		if err := h.sessions.Set(ctx, sid, session.FieldPaymentMessage, out.Message); err != nil {
			fail(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		field(e, "transaction_id", func(e *jx.Encoder) { e.Str(out.TransactionID) })
		field(e, "order_id", func(e *jx.Encoder) { e.Str(out.OrderID) })
		field(e, "status", func(e *jx.Encoder) { e.Str(progressStatus(out)) })
		if out.Reason != payment.ReasonNone {
			field(e, "reason", func(e *jx.Encoder) { e.Str(string(out.Reason)) })
		}
		field(e, "message", func(e *jx.Encoder) { e.Str(out.Message) })
		e.ObjEnd()
	})
}

func progressStatus(o *payment.Outcome) string {
	switch {
	case o.Pending:
		return "pending"
	case o.Paid:
		return string(order.StatusPaid)
	default:
		return string(order.StatusNotPaid)
	}
}
