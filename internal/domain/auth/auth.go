// Package auth resolves the customer placing an order from a bearer token.
//
// Registration and login happen outside this service; it only verifies
// HS256 tokens issued with the shared secret and reads the customer contact
// claims from them.
package auth

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/market/internal/domain/order"
)

// ErrUnauthorized is returned for a missing, malformed or expired token.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the token payload.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks customer tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Customer verifies the value of an Authorization header and returns the
// customer it names.
func (v *Verifier) Customer(header string) (order.Customer, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return order.Customer{}, ErrUnauthorized
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return order.Customer{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Email == "" {
		return order.Customer{}, errors.Wrap(ErrUnauthorized, "token has no email")
	}

	return order.Customer{
		FullName: claims.Name,
		Email:    claims.Email,
		Phone:    claims.Phone,
	}, nil
}

// Issue signs a token for c valid for ttl. The service itself never issues
// tokens; Issue exists for tooling and tests.
func (v *Verifier) Issue(c order.Customer, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:  c.FullName,
		Email: c.Email,
		Phone: c.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	s, err := token.SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}
