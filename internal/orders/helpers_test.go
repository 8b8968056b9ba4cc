package orders_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

type recordingSink struct {
	mu     sync.Mutex
	topics []string
	events []orders.Envelope
}

func (r *recordingSink) Emit(_ context.Context, topic string, env orders.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, env)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store     *orders.MemoryStore
	sink      *recordingSink
	placement *orders.PlacementService
	cart      *orders.CartService
	admin     *orders.OrderService
	catalog   *orders.ProductService
	accounts  *orders.AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := orders.NewMemoryStore()
	sink := &recordingSink{}
	images := orders.ImageURL{Base: "http://cdn.test"}
	accounts := orders.NewAccountService(store.Stores(), quietLogger())
	accounts.Cost = bcrypt.MinCost
	return &fixture{
		store:     store,
		sink:      sink,
		placement: orders.NewPlacementService(store.Stores(), store, sink, images, quietLogger(), "test"),
		cart:      orders.NewCartService(store.Stores(), images),
		admin:     orders.NewOrderService(store.Stores(), store, sink, images, quietLogger(), "test"),
		catalog:   orders.NewProductService(store.Stores(), store, images, quietLogger()),
		accounts:  accounts,
	}
}

func (f *fixture) product(title, price string, stock int) orders.Product {
	return f.store.AddProduct(orders.Product{Title: title, Price: dec(price), Stock: stock, Image: "uploads/" + title + ".png"})
}

func (f *fixture) addToCart(t *testing.T, userID, productID int64, qty int) {
	t.Helper()
	_, err := f.cart.AddToCart(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

// failingTx wraps a TxManager and swaps the tx-bound OrderStore for one that
// fails after the order header has been written.
type failingTx struct {
	inner orders.TxManager
}

func (f failingTx) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	return f.inner.WithTransaction(ctx, func(ctx context.Context, tx orders.Stores) error {
		tx.Orders = &failingItems{OrderStore: tx.Orders}
		return fn(ctx, tx)
	})
}

var errDiskFull = errors.New("disk full")

type failingItems struct {
	orders.OrderStore
}

func (f *failingItems) InsertOrderItem(context.Context, orders.NewOrderItem) (int64, error) {
	return 0, errDiskFull
}

// raceTx lowers a product's stock right before the atomic phase, simulating
// another order committing between validation and the guarded decrement.
type raceTx struct {
	inner     orders.TxManager
	store     *orders.MemoryStore
	productID int64
	stock     int
}

func (r raceTx) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	r.store.SetStock(r.productID, r.stock)
	return r.inner.WithTransaction(ctx, fn)
}
