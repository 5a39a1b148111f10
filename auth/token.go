package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/weekorder/weekorder/core"
)

// Claims is the signed token payload.
type Claims struct {
	UserID  uint      `json:"userId"`
	Role    core.Role `json:"role"`
	StoreID *uint     `json:"storeId,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. Tokens expire after ttl.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for u.
func (t *TokenService) Issue(u *User) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:  u.ID,
		Role:    u.Role,
		StoreID: u.StoreID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry. Any failure is reported as
// core.ErrUnauthenticated.
func (t *TokenService) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		msg := "Invalid or expired token."
		if errors.Is(err, jwt.ErrTokenMalformed) {
			msg = "Authentication required."
		}
		return nil, &core.Error{Op: "TokenService.Parse", Kind: "identity", Message: msg, Err: core.ErrUnauthenticated}
	}
	return claims, nil
}
