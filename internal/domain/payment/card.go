package payment

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode"
)

// cardPattern matches an 8 digit even number not ending in 0.
var cardPattern = regexp.MustCompile(`^\d{7}[2468]$`)

// NormalizeCardNumber removes all whitespace from s.
func NormalizeCardNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ValidateCardNumber reports whether s, once whitespace is removed, is an
// 8 digit even number that does not end in 0.
func ValidateCardNumber(s string) bool {
	return cardPattern.MatchString(NormalizeCardNumber(s))
}

// GenerateCardNumber returns a random valid card number formatted as two
// groups of four digits.
func GenerateCardNumber() string {
	for {
		n := 10_000_000 + rand.IntN(90_000_000)
		if n%2 == 0 && n%10 != 0 {
			s := fmt.Sprintf("%08d", n)
			return s[:4] + " " + s[4:]
		}
	}
}
