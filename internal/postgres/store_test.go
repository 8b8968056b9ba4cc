package postgres

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// Integration tests; set TEST_POSTGRES_DSN to a throwaway database to run them.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, Migrate(dsn))

	ctx := context.Background()
	pool, err := Connect(ctx, dsn, PoolOptions{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE order_items, orders, cart_items, products, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, title, price string, stock int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products(title, price, stock, image) VALUES ($1, $2, $3, $4) RETURNING id`,
		title, decimal.RequireFromString(price), stock, "uploads/"+title+".png").Scan(&id)
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, pool *pgxpool.Pool, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&n))
	return n
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func newServices(pool *pgxpool.Pool) (*orders.PlacementService, *orders.CartService) {
	l := log.New()
	l.SetOutput(io.Discard)
	st := &Store{DB: pool}
	return orders.NewPlacementService(st.Stores(), st, nil, orders.ImageURL{}, l, "test"),
		orders.NewCartService(st.Stores(), orders.ImageURL{})
}

func TestStore_PlaceOrder(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	a := seedProduct(t, pool, "mouse", "10.00", 5)
	b := seedProduct(t, pool, "pad", "5.50", 3)
	placement, cart := newServices(pool)

	_, err := cart.AddToCart(ctx, 7, a, 2)
	require.NoError(t, err)
	_, err = cart.AddToCart(ctx, 7, b, 1)
	require.NoError(t, err)

	o, err := placement.PlaceOrder(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "25.50", o.TotalPrice.StringFixed(2))
	assert.Equal(t, orders.StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "mouse", o.Items[0].Title)

	assert.Equal(t, 3, stockOf(t, pool, a))
	assert.Equal(t, 2, stockOf(t, pool, b))
	assert.Equal(t, 0, countRows(t, pool, "cart_items"))

	_, err = placement.PlaceOrder(ctx, 7)
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
}

func TestStore_RollbackOnItemFailure(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	a := seedProduct(t, pool, "mouse", "10.00", 5)
	_, cart := newServices(pool)
	_, err := cart.AddToCart(ctx, 7, a, 2)
	require.NoError(t, err)

	st := &Store{DB: pool}
	err = st.WithTransaction(ctx, func(ctx context.Context, tx orders.Stores) error {
		id, err := tx.Orders.InsertOrder(ctx, orders.NewOrder{UserID: 7, TotalPrice: decimal.NewFromInt(20), Status: orders.StatusPending})
		require.NoError(t, err)
		// product 999999 tidak ada -> FK violation
		_, err = tx.Orders.InsertOrderItem(ctx, orders.NewOrderItem{OrderID: id, ProductID: 999999, Price: decimal.NewFromInt(1), Quantity: 1})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, pool, "orders"))
	assert.Equal(t, 1, countRows(t, pool, "cart_items"))
}

func TestStore_LastUnitConcurrent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	p := seedProduct(t, pool, "last", "42.00", 1)
	placement, cart := newServices(pool)
	for _, u := range []int64{1, 2} {
		_, err := cart.AddToCart(ctx, u, p, 1)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = placement.PlaceOrder(ctx, int64(i+1))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, stockOf(t, pool, p))
	assert.Equal(t, 1, countRows(t, pool, "orders"))
}

func TestStore_ProductAdmin(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	placement, cart := newServices(pool)
	st := &Store{DB: pool}
	svc := orders.NewProductService(st.Stores(), st, orders.ImageURL{}, nil)

	p, err := svc.CreateProduct(ctx, orders.NewProduct{Title: "mouse", Description: "wireless", Price: decimal.RequireFromString("10.00"), Stock: 2})
	require.NoError(t, err)
	assert.Equal(t, "wireless", p.Description)

	price := decimal.RequireFromString("12.50")
	p, err = svc.UpdateProduct(ctx, p.ID, orders.ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "12.50", p.Price.StringFixed(2))
	assert.Equal(t, "mouse", p.Title)

	_, err = svc.SetStock(ctx, p.ID, 1)
	require.NoError(t, err)
	p, err = svc.Restock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, err = svc.Restock(ctx, 999999, 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	_, err = cart.AddToCart(ctx, 7, p.ID, 1)
	require.NoError(t, err)
	_, err = placement.PlaceOrder(ctx, 7)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, p.ID), orders.ErrProductInUse)

	// produk yang hanya ada di keranjang boleh dihapus, barisnya ikut hilang
	q, err := svc.CreateProduct(ctx, orders.NewProduct{Title: "pad", Price: decimal.NewFromInt(3), Stock: 1})
	require.NoError(t, err)
	_, err = cart.AddToCart(ctx, 8, q.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, q.ID))
	assert.Equal(t, 0, countRows(t, pool, "cart_items"))
}

func TestStore_Users(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := (&Store{DB: pool}).Stores().Users

	id, err := repo.InsertUser(ctx, orders.NewUser{Name: "Budi", Email: "budi@example.com", PasswordHash: "x", Role: orders.RoleUser})
	require.NoError(t, err)
	_, err = repo.InsertUser(ctx, orders.NewUser{Name: "Budi 2", Email: "budi@example.com", PasswordHash: "y", Role: orders.RoleUser})
	assert.ErrorIs(t, err, orders.ErrEmailTaken)

	u, err := repo.GetUserByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, orders.RoleUser, u.Role)
	assert.Empty(t, u.Phone)

	_, err = repo.GetUser(ctx, id+100)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}
