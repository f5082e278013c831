package session

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/xenking/market/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps cart lines as JSON in the cart field of the session.
type CartStore struct {
	s *Store
}

// NewCartStore returns a cart.Store backed by s.
func NewCartStore(s *Store) *CartStore {
	return &CartStore{s: s}
}

// Load implements cart.Store.
func (c *CartStore) Load(ctx context.Context, id string) ([]cart.Line, error) {
	raw, err := c.s.Get(ctx, id, FieldCart)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var lines []cart.Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return lines, nil
}

// Save implements cart.Store. An empty cart removes the field.
func (c *CartStore) Save(ctx context.Context, id string, lines []cart.Line) error {
	if len(lines) == 0 {
		return c.s.Delete(ctx, id, FieldCart)
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	return c.s.Set(ctx, id, FieldCart, string(raw))
}
