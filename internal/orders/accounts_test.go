package orders_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.accounts.Register(ctx, orders.Registration{Name: "Sari", Email: " Sari@Example.com ", Password: "rahasia123", Phone: "0812"})
	require.NoError(t, err)
	assert.Equal(t, "sari@example.com", u.Email)
	assert.Equal(t, orders.RoleUser, u.Role)
	assert.NotEqual(t, "rahasia123", u.PasswordHash)

	_, err = f.accounts.Register(ctx, orders.Registration{Name: "Lain", Email: "sari@example.com", Password: "rahasia123"})
	assert.ErrorIs(t, err, orders.ErrEmailTaken)
	assert.NotErrorIs(t, err, orders.ErrProductInUse)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		in   orders.Registration
	}{
		{"missing name", orders.Registration{Email: "a@b.co", Password: "12345678"}},
		{"bad email", orders.Registration{Name: "a", Email: "not-an-email", Password: "12345678"}},
		{"display name form", orders.Registration{Name: "a", Email: "A <a@b.co>", Password: "12345678"}},
		{"short password", orders.Registration{Name: "a", Email: "a@b.co", Password: "1234567"}},
		{"long password", orders.Registration{Name: "a", Email: "a@b.co", Password: strings.Repeat("x", 73)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, tc.in)
			assert.ErrorIs(t, err, orders.ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, err := f.accounts.Register(ctx, orders.Registration{Name: "Sari", Email: "sari@example.com", Password: "rahasia123"})
	require.NoError(t, err)

	got, err := f.accounts.Authenticate(ctx, "SARI@example.com", "rahasia123", false)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.accounts.Authenticate(ctx, "sari@example.com", "salah-sandi", false)
	assert.ErrorIs(t, err, orders.ErrBadCredentials)
	_, err = f.accounts.Authenticate(ctx, "nobody@example.com", "rahasia123", false)
	assert.ErrorIs(t, err, orders.ErrBadCredentials)

	_, err = f.accounts.Authenticate(ctx, "sari@example.com", "rahasia123", true)
	assert.ErrorIs(t, err, orders.ErrForbidden)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.accounts.CreateAdmin(ctx, orders.Registration{Name: "Ops", Email: "ops@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, orders.RoleAdmin, a.Role)

	got, err := f.accounts.Authenticate(ctx, "ops@example.com", "admin-pass", true)
	require.NoError(t, err)
	assert.True(t, got.Principal().IsAdmin())

	me, err := f.accounts.Me(ctx, got.Principal())
	require.NoError(t, err)
	assert.Equal(t, "Ops", me.Name)
}
