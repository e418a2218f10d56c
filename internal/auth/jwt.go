// Package auth: JWT bearer-token authentication, alongside the
// existing static-token implementation.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/canonica-labs/canonica/internal/errors"
)

// jwtClaims is the canonica-specific claim set carried inside the
// token, on top of the registered claims jwt.RegisteredClaims parses.
type jwtClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// JWTAuthenticator validates HS256-signed bearer tokens against a
// single shared secret. Multi-key/JWKS rotation is out of scope; one
// secret per gateway instance is the MVP.
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

// NewJWTAuthenticator creates an authenticator that only accepts
// tokens signed with secret and, if issuer is non-empty, issued by it.
func NewJWTAuthenticator(secret []byte, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, issuer: issuer}
}

// ValidateToken parses and verifies a JWT bearer token, returning the
// User it carries.
func (a *JWTAuthenticator) ValidateToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, errors.NewAuthFailed("token required")
	}

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.NewAuthFailed(fmt.Sprintf("invalid token: %v", err))
	}
	if !parsed.Valid {
		return nil, errors.NewAuthFailed("invalid token")
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, errors.NewAuthFailed("unexpected token issuer")
	}

	user := &User{
		ID:    claims.Subject,
		Name:  claims.Name,
		Roles: claims.Roles,
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	if user.IsExpired() {
		return nil, errors.NewAuthExpired()
	}
	return user, nil
}

var _ Authenticator = (*JWTAuthenticator)(nil)
