package cart

import (
	"context"
	"slices"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/market/internal/domain/catalog"
)

// --- Mock implementations ---

type memStore struct {
	data    map[string][]Line
	saves   int
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]Line)}
}

func (m *memStore) Load(_ context.Context, sessionID string) ([]Line, error) {
	return slices.Clone(m.data[sessionID]), nil
}

func (m *memStore) Save(_ context.Context, sessionID string, lines []Line) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data[sessionID] = slices.Clone(lines)
	return nil
}

type mockCatalog struct {
	products map[int64]catalog.Product
	offers   []catalog.Offer
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalog) GetProductsByIDs(_ context.Context, _ []int64) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockCatalog) GetOffer(_ context.Context, productID, shopID int64) (*catalog.Offer, error) {
	for _, o := range m.offers {
		if o.ProductID == productID && o.ShopID == shopID {
			return &o, nil
		}
	}
	return nil, catalog.ErrOfferNotFound
}

func (m *mockCatalog) ListOffers(_ context.Context, productID int64) ([]catalog.Offer, error) {
	var out []catalog.Offer
	for _, o := range m.offers {
		if o.ProductID == productID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockCatalog) GetOffersByIDs(_ context.Context, _ []int64) ([]catalog.Offer, error) {
	return nil, nil
}

// --- Helpers ---

func newTestCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[int64]catalog.Product{
			1: {ID: 1, Name: "Phone", CategoryID: 10},
			2: {ID: 2, Name: "Case", CategoryID: 11},
			3: {ID: 3, Name: "Discontinued", CategoryID: 10},
		},
		offers: []catalog.Offer{
			{ID: 100, ShopID: 1, ProductID: 1, Price: decimal.RequireFromString("50.00"), Remaining: 10},
			{ID: 101, ShopID: 2, ProductID: 1, Price: decimal.RequireFromString("45.00"), Remaining: 10},
			{ID: 200, ShopID: 1, ProductID: 2, Price: decimal.RequireFromString("7.50"), Remaining: 3},
		},
	}
}

func openCart(t *testing.T, store *memStore) *Cart {
	t.Helper()
	svc := NewService(store, newTestCatalog(), catalog.CheapestPicker{})
	c, err := svc.Open(context.Background(), "sess-1")
	require.NoError(t, err)
	return c
}

// --- Tests ---

func TestCart_AddReplaceThenAccumulate(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newMemStore())

	require.NoError(t, c.Add(ctx, 1, 1, 3, true))
	require.NoError(t, c.Add(ctx, 1, 1, 2, false))

	line, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 5, line.Quantity)

	require.NoError(t, c.Add(ctx, 1, 1, 2, true))
	line, _ = c.Get(1)
	assert.Equal(t, 2, line.Quantity)
}

func TestCart_AddWithoutShopUsesPicker(t *testing.T) {
	c := openCart(t, newMemStore())

	require.NoError(t, c.Add(context.Background(), 1, 0, 1, false))

	line, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(101), line.OfferID)
	assert.Equal(t, int64(2), line.ShopID)
	assert.Equal(t, "Phone", line.ProductName)
	assert.True(t, decimal.RequireFromString("45.00").Equal(line.UnitPrice))
}

func TestCart_AddKeepsOfferWhenShopOmitted(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newMemStore())

	require.NoError(t, c.Add(ctx, 1, 1, 1, false))
	require.NoError(t, c.Add(ctx, 1, 0, 1, false))

	line, _ := c.Get(1)
	assert.Equal(t, int64(100), line.OfferID)
	assert.Equal(t, 2, line.Quantity)
}

func TestCart_AddSwitchesShop(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newMemStore())

	require.NoError(t, c.Add(ctx, 1, 1, 2, false))
	require.NoError(t, c.Add(ctx, 1, 2, 1, false))

	line, _ := c.Get(1)
	assert.Equal(t, int64(101), line.OfferID)
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, decimal.RequireFromString("45.00").Equal(line.UnitPrice))
}

func TestCart_AddErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		product int64
		shop    int64
		qty     int
		wantErr error
	}{
		{name: "no offer anywhere", product: 3, qty: 1, wantErr: ErrNotAvailable},
		{name: "shop does not sell product", product: 2, shop: 2, qty: 1, wantErr: ErrNotAvailable},
		{name: "unknown product", product: 99, qty: 1, wantErr: catalog.ErrNotFound},
		{name: "zero quantity", product: 1, qty: 0, wantErr: ErrInvalidQuantity},
		{name: "quantity above int32", product: 1, qty: MaxQuantity + 1, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			c := openCart(t, store)

			err := c.Add(ctx, tt.product, tt.shop, tt.qty, false)

			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, c.IsEmpty())
			assert.Zero(t, store.saves)
		})
	}
}

func TestCart_AddOverflow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := openCart(t, store)

	require.NoError(t, c.Add(ctx, 1, 0, MaxQuantity, true))
	require.ErrorIs(t, c.Add(ctx, 1, 0, 1, false), ErrInvalidQuantity)

	l, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, MaxQuantity, l.Quantity)
	assert.Equal(t, 1, store.saves)

	// Replacing is bounded by the line limit alone.
	require.NoError(t, c.Add(ctx, 1, 0, 3, true))
	require.NoError(t, c.Add(ctx, 1, 0, MaxQuantity-3, false))
}

func TestCart_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := openCart(t, store)
	require.NoError(t, c.Add(ctx, 1, 1, 1, false))
	require.NoError(t, c.Add(ctx, 2, 1, 4, false))

	require.NoError(t, c.Remove(ctx, 1))
	once := c.Snapshot()
	require.NoError(t, c.Remove(ctx, 1))

	assert.Equal(t, once, c.Snapshot())
	assert.Equal(t, once, store.data["sess-1"])
	assert.Equal(t, 4, c.Len())
}

func TestCart_Totals(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newMemStore())
	require.NoError(t, c.Add(ctx, 1, 1, 2, false))
	require.NoError(t, c.Add(ctx, 2, 1, 3, false))

	assert.Equal(t, 5, c.Len())
	assert.True(t, decimal.RequireFromString("122.50").Equal(c.Subtotal()))
	assert.Equal(t, []int64{1}, c.Shops())

	require.NoError(t, c.Add(ctx, 1, 2, 2, true))
	assert.Equal(t, []int64{2, 1}, c.Shops())
}

func TestCart_LinesIsRestartable(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, newMemStore())
	require.NoError(t, c.Add(ctx, 1, 1, 2, false))
	require.NoError(t, c.Add(ctx, 2, 1, 1, false))

	var first, second []int64
	for l := range c.Lines() {
		first = append(first, l.ProductID)
	}
	for l := range c.Lines() {
		second = append(second, l.ProductID)
		assert.True(t, l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Equal(l.Total()))
	}

	assert.Equal(t, []int64{1, 2}, first)
	assert.Equal(t, first, second)
}

func TestCart_ClearPersists(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := openCart(t, store)
	require.NoError(t, c.Add(ctx, 1, 1, 2, false))

	require.NoError(t, c.Clear(ctx))

	assert.True(t, c.IsEmpty())
	assert.Empty(t, store.data["sess-1"])
}

func TestService_OpenIsolatesSessions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, newTestCatalog(), catalog.CheapestPicker{})

	a, err := svc.Open(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, a.Add(ctx, 1, 1, 2, false))

	b, err := svc.Open(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())

	again, err := svc.Open(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Len())
}

func TestCart_SaveError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("redis down")
	c := openCart(t, store)

	err := c.Add(context.Background(), 1, 1, 1, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}
