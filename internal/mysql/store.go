package mysql

import (
	"context"
	"database/sql"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// Store implements the order storage ports on MySQL/InnoDB.
type Store struct {
	DB *sqlx.DB
}

var _ orders.TxManager = (*Store)(nil)

func (s *Store) Stores() orders.Stores {
	r := &repo{q: s.DB}
	return orders.Stores{Carts: r, Products: r, Orders: r, Users: r}
}

// WithTransaction runs fn at READ COMMITTED; InnoDB evaluates the guarded
// stock UPDATE against the latest committed row.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	tx, err := s.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	r := &repo{q: tx, inTx: true}
	if err := fn(ctx, orders.Stores{Carts: r, Products: r, Orders: r, Users: r}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

type repo struct {
	q    sqlx.ExtContext
	inTx bool
}

type lineRow struct {
	UserID    int64           `db:"user_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	Stock     int             `db:"stock"`
	Title     string          `db:"title"`
	Image     string          `db:"image"`
}

func (l lineRow) line() orders.CartLine { return orders.CartLine(l) }

type productRow struct {
	ID          int64           `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Stock       int             `db:"stock"`
	Image       string          `db:"image"`
	CreatedAt   time.Time       `db:"created_at"`
}

type userRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Phone        string    `db:"phone"`
	Address      string    `db:"address"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u userRow) user() orders.User {
	return orders.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		Address:      u.Address,
		Role:         orders.Role(u.Role),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

const (
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
)

func isMySQLErr(err error, number uint16) bool {
	var me *drv.MySQLError
	return errors.As(err, &me) && me.Number == number
}

type orderRow struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	TotalPrice decimal.Decimal `db:"total_price"`
	Status     string          `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (o orderRow) order() orders.Order {
	return orders.Order{ID: o.ID, UserID: o.UserID, TotalPrice: o.TotalPrice, Status: orders.Status(o.Status), CreatedAt: o.CreatedAt}
}

type itemRow struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int             `db:"quantity"`
	Title     string          `db:"title"`
	Image     string          `db:"image"`
}

const cartLineSelect = `SELECT ci.user_id, ci.product_id, ci.quantity, p.price, p.stock, p.title, COALESCE(p.image, '') AS image
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

func (r *repo) ListLinesWithProductInfo(ctx context.Context, userID int64) ([]orders.CartLine, error) {
	var rows []lineRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, cartLineSelect+` WHERE ci.user_id = ? ORDER BY ci.product_id`, userID); err != nil {
		return nil, errors.Wrap(err, "query cart")
	}
	out := make([]orders.CartLine, 0, len(rows))
	for _, l := range rows {
		out = append(out, l.line())
	}
	return out, nil
}

func (r *repo) GetLine(ctx context.Context, userID, productID int64) (*orders.CartLine, error) {
	var row lineRow
	err := sqlx.GetContext(ctx, r.q, &row, cartLineSelect+` WHERE ci.user_id = ? AND ci.product_id = ?`, userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.NotFound("cart item")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart line")
	}
	l := row.line()
	return &l, nil
}

func (r *repo) UpsertLine(ctx context.Context, userID, productID int64, qty int) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`, userID, productID, qty)
	return errors.Wrap(err, "upsert cart line")
}

func (r *repo) DeleteLine(ctx context.Context, userID, productID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return false, errors.Wrap(err, "delete cart line")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "rows affected")
}

func (r *repo) DeleteAllLines(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return errors.Wrap(err, "clear cart")
}

func (r *repo) DeleteLines(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM cart_items WHERE user_id = ? AND product_id IN (?)`, userID, productIDs)
	if err != nil {
		return errors.Wrap(err, "build delete lines")
	}
	_, err = r.q.ExecContext(ctx, r.q.Rebind(q), args...)
	return errors.Wrap(err, "delete cart lines")
}

const productSelect = `SELECT id, title, COALESCE(description, '') AS description, price, stock,
	COALESCE(image, '') AS image, created_at FROM products`

func (r *repo) GetProduct(ctx context.Context, id int64) (*orders.Product, error) {
	q := productSelect + ` WHERE id = ?`
	if r.inTx {
		q += ` FOR UPDATE`
	}
	var p productRow
	err := sqlx.GetContext(ctx, r.q, &p, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.NotFound("product")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	out := orders.Product(p)
	return &out, nil
}

func (r *repo) ListProducts(ctx context.Context) ([]orders.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, productSelect+` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]orders.Product, 0, len(rows))
	for _, p := range rows {
		out = append(out, orders.Product(p))
	}
	return out, nil
}

func (r *repo) StockLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT id, stock FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "build stock query")
	}
	var rows []struct {
		ID    int64 `db:"id"`
		Stock int   `db:"stock"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "stock levels")
	}
	for _, row := range rows {
		out[row.ID] = row.Stock
	}
	return out, nil
}

// DecrementStock: guard stock >= qty di WHERE, 0 baris berarti kalah race.
func (r *repo) DecrementStock(ctx context.Context, productID int64, qty int) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`, qty, productID, qty)
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}

func (r *repo) InsertProduct(ctx context.Context, np orders.NewProduct) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO products(title, description, price, stock, image) VALUES (?, ?, ?, ?, NULLIF(?, ''))`,
		np.Title, np.Description, np.Price, np.Stock, np.Image)
	if err != nil {
		return 0, errors.Wrap(err, "insert product")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "product id")
}

// execOne menjalankan UPDATE satu baris; 0 baris cocok berarti produk tidak ada
// (DSN memakai clientFoundRows, jadi nilai yang sama tetap dihitung).
func (r *repo) execOne(ctx context.Context, what, q string, args ...any) error {
	res, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return orders.NotFound("product")
	}
	return nil
}

func (r *repo) UpdateProduct(ctx context.Context, p orders.Product) error {
	return r.execOne(ctx, "update product",
		`UPDATE products SET title = ?, description = ?, price = ?, image = NULLIF(?, '') WHERE id = ?`,
		p.Title, p.Description, p.Price, p.Image, p.ID)
}

func (r *repo) SetStock(ctx context.Context, productID int64, stock int) error {
	return r.execOne(ctx, "set stock", `UPDATE products SET stock = ? WHERE id = ?`, stock, productID)
}

func (r *repo) IncrementStock(ctx context.Context, productID int64, qty int) error {
	return r.execOne(ctx, "increment stock", `UPDATE products SET stock = stock + ? WHERE id = ?`, qty, productID)
}

// DeleteProduct: fk_items_product menolak (1451) selama masih ada order_items.
func (r *repo) DeleteProduct(ctx context.Context, productID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
	if isMySQLErr(err, errRowIsReferenced) {
		return false, orders.ErrProductInUse
	}
	if err != nil {
		return false, errors.Wrap(err, "delete product")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "rows affected")
}

func (r *repo) InsertUser(ctx context.Context, u orders.NewUser) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO users(name, email, password_hash, phone, address, role)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`,
		u.Name, u.Email, u.PasswordHash, u.Phone, u.Address, string(u.Role))
	if isMySQLErr(err, errDuplicateEntry) {
		return 0, orders.ErrEmailTaken
	}
	if err != nil {
		return 0, errors.Wrap(err, "insert user")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "user id")
}

const userSelect = `SELECT id, name, email, password_hash, COALESCE(phone, '') AS phone,
	COALESCE(address, '') AS address, role, created_at FROM users`

func (r *repo) getUser(ctx context.Context, where string, arg any) (*orders.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.q, &row, userSelect+` WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.NotFound("user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u := row.user()
	return &u, nil
}

func (r *repo) GetUser(ctx context.Context, id int64) (*orders.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

func (r *repo) GetUserByEmail(ctx context.Context, email string) (*orders.User, error) {
	return r.getUser(ctx, `email = ?`, email)
}

func (r *repo) InsertOrder(ctx context.Context, o orders.NewOrder) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO orders(user_id, total_price, status) VALUES (?, ?, ?)`,
		o.UserID, o.TotalPrice, string(o.Status))
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "order id")
}

func (r *repo) InsertOrderItem(ctx context.Context, it orders.NewOrderItem) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO order_items(order_id, product_id, price, quantity) VALUES (?, ?, ?, ?)`,
		it.OrderID, it.ProductID, it.Price, it.Quantity)
	if err != nil {
		return 0, errors.Wrap(err, "insert order item")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "order item id")
}

const orderSelect = `SELECT id, user_id, total_price, status, created_at FROM orders`

func (r *repo) GetOrderWithItems(ctx context.Context, orderID int64) (*orders.Order, error) {
	q := orderSelect + ` WHERE id = ?`
	if r.inTx {
		q += ` FOR UPDATE`
	}
	var row orderRow
	err := sqlx.GetContext(ctx, r.q, &row, q, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.NotFound("order")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o := row.order()
	items, err := r.itemsFor(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	o.Items = items[orderID]
	if o.Items == nil {
		o.Items = []orders.OrderItem{}
	}
	return &o, nil
}

func (r *repo) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]orders.OrderItem, error) {
	q, args, err := sqlx.In(`
		SELECT oi.id, oi.order_id, oi.product_id, oi.price, oi.quantity, p.title, COALESCE(p.image, '') AS image
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (?)
		ORDER BY oi.order_id, oi.id`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "build items query")
	}
	var rows []itemRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	out := make(map[int64][]orders.OrderItem, len(orderIDs))
	for _, it := range rows {
		out[it.OrderID] = append(out[it.OrderID], orders.OrderItem(it))
	}
	return out, nil
}

func (r *repo) ListOrders(ctx context.Context, userID int64) ([]orders.Order, error) {
	q := orderSelect
	var args []any
	if userID != 0 {
		q += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]orders.Order, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.order())
		ids = append(ids, row.ID)
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
		if out[i].Items == nil {
			out[i].Items = []orders.OrderItem{}
		}
	}
	return out, nil
}

func (r *repo) UpdateStatus(ctx context.Context, orderID int64, status orders.Status) error {
	res, err := r.q.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID)
	if err != nil {
		return errors.Wrap(err, "update status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return orders.NotFound("order")
	}
	return nil
}

func (r *repo) DeleteOrder(ctx context.Context, orderID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return false, errors.Wrap(err, "delete order")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "rows affected")
}
