package orders_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

var (
	alice = orders.Principal{UserID: 1, Role: orders.RoleUser}
	bob   = orders.Principal{UserID: 2, Role: orders.RoleUser}
	admin = orders.Principal{UserID: 99, Role: orders.RoleAdmin}
)

func placeFor(t *testing.T, f *fixture, userID int64) *orders.Order {
	t.Helper()
	p := f.product("item", "3.00", 10)
	f.addToCart(t, userID, p.ID, 1)
	o, err := f.placement.PlaceOrder(context.Background(), userID)
	require.NoError(t, err)
	return o
}

func TestListOrders_ScopedByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	placeFor(t, f, alice.UserID)
	placeFor(t, f, bob.UserID)
	placeFor(t, f, alice.UserID)

	mine, err := f.admin.ListOrders(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, alice.UserID, o.UserID)
		assert.NotEmpty(t, o.Items)
	}

	all, err := f.admin.ListOrders(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetOrder_Permissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := placeFor(t, f, alice.UserID)

	_, err := f.admin.GetOrder(ctx, bob, o.ID)
	assert.ErrorIs(t, err, orders.ErrForbidden)

	got, err := f.admin.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.admin.GetOrder(ctx, admin, 12345)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := placeFor(t, f, alice.UserID)
	before := f.sink.count()

	got, err := f.admin.UpdateOrderStatus(ctx, o.ID, orders.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status)

	_, err = f.admin.UpdateOrderStatus(ctx, o.ID, orders.StatusPending)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = f.admin.UpdateOrderStatus(ctx, o.ID, orders.Status("lost"))
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	_, err = f.admin.UpdateOrderStatus(ctx, 777, orders.StatusShipped)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	require.Equal(t, before+1, f.sink.count())
	env := f.sink.events[before]
	assert.Equal(t, orders.TopicOrderStatusChanged, f.sink.topics[before])
	var p orders.OrderStatusChangedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, orders.StatusPending, p.From)
	assert.Equal(t, orders.StatusProcessing, p.To)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to orders.Status
		ok       bool
	}{
		{orders.StatusPending, orders.StatusProcessing, true},
		{orders.StatusPending, orders.StatusCancelled, true},
		{orders.StatusPending, orders.StatusShipped, false},
		{orders.StatusProcessing, orders.StatusShipped, true},
		{orders.StatusShipped, orders.StatusDelivered, true},
		{orders.StatusShipped, orders.StatusCancelled, false},
		{orders.StatusDelivered, orders.StatusPending, false},
		{orders.StatusCancelled, orders.StatusProcessing, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, orders.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := placeFor(t, f, alice.UserID)

	require.NoError(t, f.admin.DeleteOrder(ctx, o.ID))
	assert.Equal(t, 0, f.store.OrderCount())
	assert.Equal(t, 0, f.store.ItemCount())
	assert.ErrorIs(t, f.admin.DeleteOrder(ctx, o.ID), orders.ErrNotFound)
}
