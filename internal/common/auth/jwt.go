// internal/common/auth/jwt.go
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cakeshop-notifier/internal/common/errors"

	"github.com/golang-jwt/jwt/v4"
)

// Roles carried in storefront tokens.
const (
	RoleDelivery = "delivery"
	RoleAdmin    = "admin"
)

// Claims are the storefront session claims. UserID is the delivery boy or
// admin primary key.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
}

// Verifier validates HS256 tokens signed with the storefront secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates raw and returns its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.NewAuthenticationError("missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.NewAuthenticationError(fmt.Sprintf("invalid token: %v", err))
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, errors.NewAuthenticationError("unexpected issuer")
	}
	if claims.UserID <= 0 {
		return nil, errors.NewAuthenticationError("token has no subject id")
	}
	return claims, nil
}

// VerifyRole verifies raw and requires the given role.
func (v *Verifier) VerifyRole(raw, role string) (*Claims, error) {
	claims, err := v.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, errors.NewForbiddenError(fmt.Sprintf("role %q required", role))
	}
	return claims, nil
}

// Issue signs a token for id and role. Used by operator tooling and tests.
func (v *Verifier) Issue(id int64, role, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: id,
		Role:   role,
		Email:  email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
