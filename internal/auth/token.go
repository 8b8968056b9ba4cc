// Package auth issues and verifies the HS256 bearer tokens used by the API.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID int64       `json:"user_id"`
	Role   orders.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Principal() orders.Principal {
	return orders.Principal{UserID: c.UserID, Role: c.Role}
}

// Issue signs a token for userID. ttl <= 0 berarti 24 jam.
func Issue(secret string, userID int64, role orders.Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return tok, errors.Wrap(err, "sign token")
}

// Parse verifies signature, algorithm and expiry. Every failure wraps ErrInvalidToken.
func Parse(secret, token string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if c.UserID <= 0 {
		return nil, errors.Wrap(ErrInvalidToken, "missing user_id")
	}
	switch c.Role {
	case orders.RoleUser, orders.RoleAdmin:
	default:
		return nil, errors.Wrapf(ErrInvalidToken, "unknown role %q", c.Role)
	}
	return &c, nil
}
