package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	active *Active
	err    error
	gotDay time.Time
}

func (m *mockRepo) ActiveOn(_ context.Context, day time.Time) (*Active, error) {
	m.gotDay = day
	return m.active, m.err
}

func (m *mockRepo) ListProductDiscounts(_ context.Context, day time.Time) ([]ProductDiscount, error) {
	m.gotDay = day
	if m.err != nil {
		return nil, m.err
	}
	return m.active.Products, nil
}

func TestResolver_Resolve(t *testing.T) {
	repo := &mockRepo{active: &Active{
		Carts: []CartDiscount{{ID: 1, Percentage: 10, Weight: dec("1"), Period: running, PriceFrom: dec("0"), PriceTo: dec("1000")}},
	}}
	r := NewResolver(repo, nil)
	r.now = func() time.Time { return today }

	res, err := r.Resolve(context.Background(), []Item{item(1, 1, "50.00", 2)})

	require.NoError(t, err)
	assert.True(t, dec("90").Equal(res.Total))
	assert.Equal(t, today, repo.gotDay)
}

func TestResolver_UsesLocationDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 21:00 UTC on the 14th is already the 15th at UTC+5.
	now := time.Date(2025, 6, 14, 21, 0, 0, 0, time.UTC)
	repo := &mockRepo{active: &Active{
		Sets: []SetDiscount{{
			ID: 1, Percentage: 10, Weight: dec("1"), CategoryIDs: []int64{1},
			Period: Period{Start: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		}},
	}}
	r := NewResolver(repo, loc)
	r.now = func() time.Time { return now }

	res, err := r.Resolve(context.Background(), []Item{item(1, 1, "10.00", 1)})

	require.NoError(t, err)
	require.NotNil(t, res.Applied)
	assert.Equal(t, 15, repo.gotDay.Day())
}

func TestResolver_RepoError(t *testing.T) {
	r := NewResolver(&mockRepo{err: errors.New("db down")}, nil)

	_, err := r.Resolve(context.Background(), []Item{item(1, 1, "10.00", 1)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load active discounts")
}

func TestResolver_ProductDiscounts(t *testing.T) {
	repo := &mockRepo{active: &Active{Products: []ProductDiscount{{ID: 3, Name: "Summer", Percentage: 15, Period: running}}}}
	r := NewResolver(repo, nil)

	list, err := r.ProductDiscounts(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Summer", list[0].Name)
}

func TestResolver_ActiveLookup(t *testing.T) {
	repo := &mockRepo{active: &Active{
		Products: []ProductDiscount{{ID: 3, Name: "Summer", Percentage: 15, Period: running}},
		Sets:     []SetDiscount{{ID: 4, Name: "Office", Percentage: 5, Weight: dec("1"), Period: running}},
		Carts:    []CartDiscount{{ID: 5, Name: "Big basket", Percentage: 7, Weight: dec("2"), Period: running}},
	}}
	r := NewResolver(repo, nil)
	r.now = func() time.Time { return today }

	active, err := r.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, today, repo.gotDay)

	set, err := active.Set(4)
	require.NoError(t, err)
	assert.Equal(t, "Office", set.Name)

	c, err := active.Cart(5)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Percentage)

	_, err = active.Product(4)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = active.Cart(3)
	require.ErrorIs(t, err, ErrNotFound)
}
