package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims of a backend bearer token
type Claims struct {
	Subject   string    `json:"sub" yaml:"sub"`
	ExpiresAt time.Time `json:"exp,omitempty" yaml:"exp,omitempty"`
}

// TokenClaims decodes a backend JWT without verifying it. The client holds no
// verification key; the result is for display only and must never be used
// for access decisions.
func TokenClaims(raw string) (Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("[session TokenClaims] %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("[session TokenClaims] unexpected claims type %T", token.Claims)
	}

	var out Claims
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
