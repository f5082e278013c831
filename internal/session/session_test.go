//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/session"
	"github.com/xenking/market/internal/testenv"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	rdb := testenv.Redis(ctx, t)
	store := session.NewStore(rdb, time.Hour)

	t.Run("CartRoundTrip", func(t *testing.T) {
		id := session.NewID()
		carts := session.NewCartStore(store)

		lines, err := carts.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, lines)

		want := []cart.Line{{
			ProductID: 1, ProductName: "Tea", OfferID: 10, ShopID: 2,
			Quantity: 3, UnitPrice: decimal.RequireFromString("12.50"),
		}}
		require.NoError(t, carts.Save(ctx, id, want))

		got, err := carts.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want[0].Quantity, got[0].Quantity)
		assert.True(t, want[0].UnitPrice.Equal(got[0].UnitPrice))

		ttl, err := rdb.TTL(ctx, "session:"+id).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, carts.Save(ctx, id, nil))
		got, err = carts.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Checkout", func(t *testing.T) {
		id := session.NewID()
		require.NoError(t, store.SaveDelivery(ctx, id, order.DeliveryExpress, "Riga", "Brivibas 1"))
		require.NoError(t, store.SavePayment(ctx, id, order.PaymentCard))

		c, err := store.Checkout(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, order.Checkout{
			Delivery: order.DeliveryExpress,
			City:     "Riga",
			Address:  "Brivibas 1",
			Payment:  order.PaymentCard,
		}, c)

		require.NoError(t, store.ClearCheckout(ctx, id))
		c, err = store.Checkout(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, order.Checkout{}, c)
	})

	t.Run("SetOnce", func(t *testing.T) {
		id := session.NewID()
		require.NoError(t, store.StartPayment(ctx, id, "tx-1"))

		first, err := store.SetOnce(ctx, id, session.FieldPaymentStarted, "1")
		require.NoError(t, err)
		assert.True(t, first)

		again, err := store.SetOnce(ctx, id, session.FieldPaymentStarted, "1")
		require.NoError(t, err)
		assert.False(t, again)

		// A new payment resets the started flag.
		require.NoError(t, store.StartPayment(ctx, id, "tx-2"))
		first, err = store.SetOnce(ctx, id, session.FieldPaymentStarted, "1")
		require.NoError(t, err)
		assert.True(t, first)

		tx, err := store.Get(ctx, id, session.FieldPaymentTx)
		require.NoError(t, err)
		assert.Equal(t, "tx-2", tx)

		// Clearing the flag lets the hand-off run again.
		require.NoError(t, store.Delete(ctx, id, session.FieldPaymentStarted))
		first, err = store.SetOnce(ctx, id, session.FieldPaymentStarted, "1")
		require.NoError(t, err)
		assert.True(t, first)
	})

	t.Run("OddPairs", func(t *testing.T) {
		require.Error(t, store.Set(ctx, session.NewID(), "only-name"))
	})
}
