package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Resolver loads the discounts active today and applies them to cart items.
type Resolver struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewResolver creates a Resolver backed by repo. Discount dates are compared
// against the current date in loc (UTC when nil).
func NewResolver(repo Repository, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{repo: repo, loc: loc, now: time.Now}
}

// Today returns the current time in the resolver's location.
func (r *Resolver) Today() time.Time {
	return r.now().In(r.loc)
}

// Resolve computes the discounted total for items.
func (r *Resolver) Resolve(ctx context.Context, items []Item) (*Result, error) {
	day := r.Today()
	active, err := r.repo.ActiveOn(ctx, day)
	if err != nil {
		return nil, errors.Wrap(err, "load active discounts")
	}
	res := Apply(active, items, day)
	return &res, nil
}

// ProductDiscounts lists the product discounts running today.
func (r *Resolver) ProductDiscounts(ctx context.Context) ([]ProductDiscount, error) {
	list, err := r.repo.ListProductDiscounts(ctx, r.Today())
	if err != nil {
		return nil, errors.Wrap(err, "list product discounts")
	}
	return list, nil
}

// Active returns every discount running today.
func (r *Resolver) Active(ctx context.Context) (*Active, error) {
	active, err := r.repo.ActiveOn(ctx, r.Today())
	if err != nil {
		return nil, errors.Wrap(err, "load active discounts")
	}
	return active, nil
}
