package discount

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply resolves product, set and cart discounts for items on the given day.
//
// Product discounts reduce individual lines; when several match a product the
// highest percentage is used. Then at most one set or cart discount is applied
// to the subtotal: the candidate with the higher weight, the cart discount on
// equal weight.
func Apply(active *Active, items []Item, day time.Time) Result {
	if active == nil {
		active = &Active{}
	}

	gross := decimal.Zero
	subtotal := decimal.Zero
	for _, item := range items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		gross = gross.Add(line)
		if pct := productPercentage(active.Products, item.ProductID, day); pct > 0 {
			line = line.Sub(percentOf(line, pct))
		}
		subtotal = subtotal.Add(line)
	}

	res := Result{
		Gross:    gross.Round(2),
		Subtotal: subtotal.Round(2),
		Total:    subtotal.Round(2),
	}
	if len(items) == 0 {
		return res
	}

	set := bestSet(active.Sets, items, day)
	cart := bestCart(active.Carts, res.Subtotal, day)

	var chosen *Applied
	switch {
	case set != nil && cart != nil:
		if set.Weight.GreaterThan(cart.Weight) {
			chosen = set
		} else {
			chosen = cart
		}
	case set != nil:
		chosen = set
	case cart != nil:
		chosen = cart
	}

	if chosen != nil {
		res.Applied = chosen
		res.Total = res.Subtotal.Sub(percentOf(res.Subtotal, chosen.Percentage)).Round(2)
	}
	return res
}

func productPercentage(discounts []ProductDiscount, productID int64, day time.Time) int {
	best := 0
	for _, d := range discounts {
		if !d.Period.ActiveOn(day) || !slices.Contains(d.ProductIDs, productID) {
			continue
		}
		best = max(best, d.Percentage)
	}
	return best
}

func bestSet(sets []SetDiscount, items []Item, day time.Time) *Applied {
	var best *Applied
	for _, s := range sets {
		if !s.Period.ActiveOn(day) || !coversAll(s.CategoryIDs, items) {
			continue
		}
		cand := &Applied{Kind: KindSet, ID: s.ID, Name: s.Name, Percentage: s.Percentage, Weight: s.Weight}
		if better(cand, best) {
			best = cand
		}
	}
	return best
}

func bestCart(carts []CartDiscount, subtotal decimal.Decimal, day time.Time) *Applied {
	var best *Applied
	for _, c := range carts {
		if !c.Period.ActiveOn(day) {
			continue
		}
		if subtotal.LessThan(c.PriceFrom) || subtotal.GreaterThan(c.PriceTo) {
			continue
		}
		cand := &Applied{Kind: KindCart, ID: c.ID, Name: c.Name, Percentage: c.Percentage, Weight: c.Weight}
		if better(cand, best) {
			best = cand
		}
	}
	return best
}

// coversAll reports whether every item's category is in categories.
func coversAll(categories []int64, items []Item) bool {
	for _, item := range items {
		if !slices.Contains(categories, item.CategoryID) {
			return false
		}
	}
	return true
}

// better orders candidates of the same kind: higher weight, then higher
// percentage, then lower id.
func better(a, b *Applied) bool {
	if b == nil {
		return true
	}
	if c := a.Weight.Cmp(b.Weight); c != 0 {
		return c > 0
	}
	if a.Percentage != b.Percentage {
		return a.Percentage > b.Percentage
	}
	return a.ID < b.ID
}

func percentOf(d decimal.Decimal, pct int) decimal.Decimal {
	return d.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
}
