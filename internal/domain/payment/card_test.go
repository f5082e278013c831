package payment

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestValidateCardNumber(t *testing.T) {
	tests := []struct {
		card string
		want bool
	}{
		{card: "4444 4444", want: true},
		{card: "44444444", want: true},
		{card: " 1234\t5678 ", want: true},
		{card: "1111 1110", want: false},
		{card: "1111 1111", want: false},
		{card: "1111 111", want: false},
		{card: "1111 11112", want: false},
		{card: "abcd efg2", want: false},
		{card: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.card, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCardNumber(tt.card))
		})
	}
}

func TestGenerateCardNumber(t *testing.T) {
	for range 100 {
		card := GenerateCardNumber()
		assert.Equal(t, 9, utf8.RuneCountInString(card))
		assert.True(t, ValidateCardNumber(card), "generated %q", card)
	}
}
