package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodySize = 64 << 10

// badRequestError wraps a malformed request body.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// decodeObject reads the request body as a JSON object, calling field for
// every key. An empty body is treated as {}.
func decodeObject(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return &badRequestError{err: err}
	}
	if len(body) > maxBodySize {
		return &badRequestError{err: errors.New("body too large")}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(body).Obj(field); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money writes d as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func field(e *jx.Encoder, name string, write func(e *jx.Encoder)) {
	e.FieldStart(name)
	write(e)
}
