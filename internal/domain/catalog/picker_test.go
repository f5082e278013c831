package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offer(id int64, price string) Offer {
	return Offer{ID: id, ShopID: id * 10, ProductID: 1, Price: decimal.RequireFromString(price), Remaining: 5}
}

func TestCheapestPicker(t *testing.T) {
	tests := []struct {
		name   string
		offers []Offer
		wantID int64
	}{
		{name: "single offer", offers: []Offer{offer(1, "10")}, wantID: 1},
		{name: "lowest price wins", offers: []Offer{offer(1, "10"), offer(2, "9.99"), offer(3, "12")}, wantID: 2},
		{name: "equal price falls back to lowest id", offers: []Offer{offer(7, "5"), offer(3, "5.00")}, wantID: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheapestPicker{}.Pick(tt.offers)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestRandomPicker_AlwaysReturnsCandidate(t *testing.T) {
	offers := []Offer{offer(1, "10"), offer(2, "11"), offer(3, "12")}
	seen := make(map[int64]bool)
	for range 200 {
		got := RandomPicker{}.Pick(offers)
		seen[got.ID] = true
	}
	for id := range seen {
		assert.Contains(t, []int64{1, 2, 3}, id)
	}
}

func TestNewPicker(t *testing.T) {
	p, err := NewPicker("")
	require.NoError(t, err)
	assert.IsType(t, RandomPicker{}, p)

	p, err = NewPicker(PolicyCheapest)
	require.NoError(t, err)
	assert.IsType(t, CheapestPicker{}, p)

	_, err = NewPicker("priciest")
	require.Error(t, err)
}
