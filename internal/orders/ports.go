package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// CartStore: baris keranjang per user.
type CartStore interface {
	// ListLinesWithProductInfo returns the user's cart joined with the current
	// product price, stock and title, ordered by product id.
	ListLinesWithProductInfo(ctx context.Context, userID int64) ([]CartLine, error)
	GetLine(ctx context.Context, userID, productID int64) (*CartLine, error)
	UpsertLine(ctx context.Context, userID, productID int64, qty int) error
	DeleteLine(ctx context.Context, userID, productID int64) (bool, error)
	DeleteAllLines(ctx context.Context, userID int64) error
	// DeleteLines removes only the given products from the user's cart.
	DeleteLines(ctx context.Context, userID int64, productIDs []int64) error
}

type NewProduct struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       string
}

type ProductCatalog interface {
	// GetProduct locks the row when called inside a transaction (SQL stores).
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	StockLevels(ctx context.Context, ids []int64) (map[int64]int, error)
	// DecrementStock must only apply when stock >= qty; it returns the affected rows.
	DecrementStock(ctx context.Context, productID int64, qty int) (int64, error)

	InsertProduct(ctx context.Context, p NewProduct) (int64, error)
	// UpdateProduct menulis title, description, price, image. Stok tidak disentuh.
	UpdateProduct(ctx context.Context, p Product) error
	SetStock(ctx context.Context, productID int64, stock int) error
	IncrementStock(ctx context.Context, productID int64, qty int) error
	// DeleteProduct returns ErrProductInUse while order items still reference it.
	DeleteProduct(ctx context.Context, productID int64) (bool, error)
}

type NewOrder struct {
	UserID     int64
	TotalPrice decimal.Decimal
	Status     Status
}

type NewOrderItem struct {
	OrderID   int64
	ProductID int64
	Price     decimal.Decimal
	Quantity  int
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o NewOrder) (int64, error)
	InsertOrderItem(ctx context.Context, it NewOrderItem) (int64, error)
	// GetOrderWithItems returns ErrNotFound (classified) when the order does not exist.
	GetOrderWithItems(ctx context.Context, orderID int64) (*Order, error)
	ListOrders(ctx context.Context, userID int64) ([]Order, error) // userID 0 = semua
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
	DeleteOrder(ctx context.Context, orderID int64) (bool, error)
}

type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	Role         Role
}

type UserStore interface {
	// InsertUser returns ErrEmailTaken when the email is already registered.
	InsertUser(ctx context.Context, u NewUser) (int64, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Stores is the set of storage ports. Inside a transaction every store is bound
// to the same underlying tx.
type Stores struct {
	Carts    CartStore
	Products ProductCatalog
	Orders   OrderStore
	Users    UserStore
}

// TxManager runs fn in one atomic unit of work. Any error returned by fn, or a
// panic, rolls the whole unit back; nil commits.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}

// EventSink menerima event setelah commit. Implementasi tidak boleh blocking
// dan kegagalan publish tidak pernah membatalkan order.
type EventSink interface {
	Emit(ctx context.Context, topic string, env Envelope)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, string, Envelope) {}
