package redisx

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// Butuh redis sungguhan: TEST_REDIS_ADDR=127.0.0.1:6379
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, Ping(context.Background(), rdb))
	return rdb
}

func TestIdempotency(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)
	key := uuid.NewString()

	id, claimed, err := idem.Claim(ctx, 7, key)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Zero(t, id)

	// request kedua saat yang pertama masih jalan
	id, claimed, err = idem.Claim(ctx, 7, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, id)

	// user lain, key sama: independen
	_, claimed, err = idem.Claim(ctx, 8, key)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, idem.Release(ctx, 8, key))

	require.NoError(t, idem.Complete(ctx, 7, key, 99))
	id, claimed, err = idem.Claim(ctx, 7, key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(99), id)
}

func TestOrderCache(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := NewOrderCache(rdb)
	o := &orders.Order{ID: 987654, UserID: 3, TotalPrice: decimal.RequireFromString("25.50"), Status: orders.StatusPending,
		Items: []orders.OrderItem{{ProductID: 1, Price: decimal.RequireFromString("10.00"), Quantity: 2}}}

	ver, err := c.Version(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, o, ver))
	got, ok, err := c.Get(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, o.TotalPrice.Equal(got.TotalPrice))
	assert.Len(t, got.Items, 1)

	require.NoError(t, c.Invalidate(ctx, o.ID))
	_, ok, err = c.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderCache_SkipsPutAfterInvalidate(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := NewOrderCache(rdb)
	o := &orders.Order{ID: 987655, UserID: 3, Status: orders.StatusPending}

	// GET membaca versi, lalu PATCH meng-invalidate sebelum GET sempat Put
	ver, err := c.Version(ctx, o.ID)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, o.ID))

	require.NoError(t, c.Put(ctx, o, ver))
	_, ok, err := c.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok, "stale order must not be cached")

	ver2, err := c.Version(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ver+1, ver2)
	require.NoError(t, c.Put(ctx, o, ver2))
	_, ok, err = c.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.Invalidate(ctx, o.ID))
}

func TestDedup(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	d := NewDedup(rdb, "test")
	ev := uuid.NewString()

	first, err := d.First(ctx, ev)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := d.First(ctx, ev)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, ev))
	first, err = d.First(ctx, ev)
	require.NoError(t, err)
	assert.True(t, first)
}
