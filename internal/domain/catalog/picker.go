package catalog

import (
	"math/rand/v2"

	"github.com/go-faster/errors"
)

// OfferPicker chooses one offer when a customer adds a product to the cart
// without naming a shop. Implementations receive at least one offer.
type OfferPicker interface {
	Pick(offers []Offer) Offer
}

// RandomPicker picks any offer uniformly at random. Two requests for the same
// product may land in different shops.
type RandomPicker struct{}

// Pick implements OfferPicker.
func (RandomPicker) Pick(offers []Offer) Offer {
	return offers[rand.IntN(len(offers))]
}

// CheapestPicker picks the lowest-priced offer, falling back to the lowest
// offer ID on equal prices.
type CheapestPicker struct{}

// Pick implements OfferPicker.
func (CheapestPicker) Pick(offers []Offer) Offer {
	best := offers[0]
	for _, o := range offers[1:] {
		switch {
		case o.Price.LessThan(best.Price):
			best = o
		case o.Price.Equal(best.Price) && o.ID < best.ID:
			best = o
		}
	}
	return best
}

// Offer policy names accepted by NewPicker.
const (
	PolicyRandom   = "random"
	PolicyCheapest = "cheapest"
)

// NewPicker returns the OfferPicker for the named policy.
func NewPicker(policy string) (OfferPicker, error) {
	switch policy {
	case "", PolicyRandom:
		return RandomPicker{}, nil
	case PolicyCheapest:
		return CheapestPicker{}, nil
	default:
		return nil, errors.Errorf("unknown offer policy %q", policy)
	}
}
