package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

const secret = "s3cret"

func TestIssueParse(t *testing.T) {
	tok, err := Issue(secret, 42, orders.RoleAdmin, time.Hour)
	require.NoError(t, err)

	c, err := Parse(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.UserID)
	assert.Equal(t, orders.RoleAdmin, c.Role)
	assert.Equal(t, "42", c.Subject)
	assert.True(t, c.Principal().IsAdmin())
}

func TestParse_Rejects(t *testing.T) {
	good, err := Issue(secret, 1, orders.RoleUser, time.Hour)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Role: orders.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Role: "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1, Role: orders.RoleUser}).SignedString([]byte(secret))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: 1, Role: orders.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	cases := map[string]struct{ secret, token string }{
		"wrong secret": {"other", good},
		"expired":      {secret, expired},
		"bad role":     {secret, noRole},
		"no exp":       {secret, noExp},
		"other alg":    {secret, hs512},
		"garbage":      {secret, "not.a.jwt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.secret, tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssue_DefaultTTL(t *testing.T) {
	tok, err := Issue(secret, 3, orders.RoleUser, 0)
	require.NoError(t, err)
	c, err := Parse(secret, tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), c.ExpiresAt.Time, time.Minute)
}
