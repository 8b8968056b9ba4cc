package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// querier dipenuhi oleh *pgxpool.Pool maupun pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the order storage ports on Postgres.
type Store struct {
	DB *pgxpool.Pool
}

var _ orders.TxManager = (*Store)(nil)

func (s *Store) Stores() orders.Stores {
	r := &repo{q: s.DB}
	return orders.Stores{Carts: r, Products: r, Orders: r, Users: r}
}

// WithTransaction runs fn on a READ COMMITTED transaction. Postgres re-checks
// the stock >= qty guard after waiting on the row lock.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r := &repo{q: tx, inTx: true}
	if err := fn(ctx, orders.Stores{Carts: r, Products: r, Orders: r, Users: r}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

type repo struct {
	q    querier
	inTx bool
}

const cartLineCols = `ci.user_id, ci.product_id, ci.quantity, p.price, p.stock, p.title, COALESCE(p.image, '')`

func scanLine(row pgx.Row, l *orders.CartLine) error {
	return row.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.Price, &l.Stock, &l.Title, &l.Image)
}

func (r *repo) ListLinesWithProductInfo(ctx context.Context, userID int64) ([]orders.CartLine, error) {
	rows, err := r.q.Query(ctx, `SELECT `+cartLineCols+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart")
	}
	defer rows.Close()

	out := make([]orders.CartLine, 0)
	for rows.Next() {
		var l orders.CartLine
		if err := scanLine(rows, &l); err != nil {
			return nil, errors.Wrap(err, "scan cart line")
		}
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "iterate cart")
}

func (r *repo) GetLine(ctx context.Context, userID, productID int64) (*orders.CartLine, error) {
	var l orders.CartLine
	err := scanLine(r.q.QueryRow(ctx, `SELECT `+cartLineCols+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND ci.product_id = $2`, userID, productID), &l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("cart item")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart line")
	}
	return &l, nil
}

func (r *repo) UpsertLine(ctx context.Context, userID, productID int64, qty int) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, qty)
	return errors.Wrap(err, "upsert cart line")
}

func (r *repo) DeleteLine(ctx context.Context, userID, productID int64) (bool, error) {
	ct, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, errors.Wrap(err, "delete cart line")
	}
	return ct.RowsAffected() > 0, nil
}

func (r *repo) DeleteAllLines(ctx context.Context, userID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return errors.Wrap(err, "clear cart")
}

func (r *repo) DeleteLines(ctx context.Context, userID int64, productIDs []int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`, userID, productIDs)
	return errors.Wrap(err, "delete cart lines")
}

const productCols = `id, title, description, price, stock, COALESCE(image, ''), created_at`

func scanProduct(row pgx.Row, p *orders.Product) error {
	return row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Stock, &p.Image, &p.CreatedAt)
}

func (r *repo) GetProduct(ctx context.Context, id int64) (*orders.Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE id = $1`
	if r.inTx {
		q += ` FOR UPDATE`
	}
	var p orders.Product
	err := scanProduct(r.q.QueryRow(ctx, q, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("product")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return &p, nil
}

func (r *repo) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	out := make([]orders.Product, 0)
	for rows.Next() {
		var p orders.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate products")
}

func (r *repo) StockLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	rows, err := r.q.Query(ctx, `SELECT id, stock FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "stock levels")
	}
	defer rows.Close()

	out := make(map[int64]int, len(ids))
	for rows.Next() {
		var id int64
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, errors.Wrap(err, "scan stock")
		}
		out[id] = stock
	}
	return out, errors.Wrap(rows.Err(), "iterate stock")
}

// DecrementStock hanya mengurangi kalau stok cukup; 0 baris = kalah race.
func (r *repo) DecrementStock(ctx context.Context, productID int64, qty int) (int64, error) {
	ct, err := r.q.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return 0, errors.Wrap(err, "decrement stock")
	}
	return ct.RowsAffected(), nil
}

func (r *repo) InsertProduct(ctx context.Context, np orders.NewProduct) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO products(title, description, price, stock, image)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id`, np.Title, np.Description, np.Price, np.Stock, np.Image).Scan(&id)
	return id, errors.Wrap(err, "insert product")
}

func (r *repo) UpdateProduct(ctx context.Context, p orders.Product) error {
	ct, err := r.q.Exec(ctx, `
		UPDATE products SET title = $2, description = $3, price = $4, image = NULLIF($5, '')
		WHERE id = $1`, p.ID, p.Title, p.Description, p.Price, p.Image)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound("product")
	}
	return nil
}

func (r *repo) SetStock(ctx context.Context, productID int64, stock int) error {
	ct, err := r.q.Exec(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, productID, stock)
	if err != nil {
		return errors.Wrap(err, "set stock")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound("product")
	}
	return nil
}

func (r *repo) IncrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := r.q.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return errors.Wrap(err, "increment stock")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound("product")
	}
	return nil
}

// DeleteProduct: cart_items ikut terhapus (CASCADE), order_items menahan (RESTRICT).
func (r *repo) DeleteProduct(ctx context.Context, productID int64) (bool, error) {
	ct, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if isPgCode(err, pgForeignKeyViolation) {
		return false, orders.ErrProductInUse
	}
	if err != nil {
		return false, errors.Wrap(err, "delete product")
	}
	return ct.RowsAffected() > 0, nil
}

func (r *repo) InsertUser(ctx context.Context, u orders.NewUser) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO users(name, email, password_hash, phone, address, role)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id`, u.Name, u.Email, u.PasswordHash, u.Phone, u.Address, string(u.Role)).Scan(&id)
	if isPgCode(err, pgUniqueViolation) {
		return 0, orders.ErrEmailTaken
	}
	return id, errors.Wrap(err, "insert user")
}

const userCols = `id, name, email, password_hash, COALESCE(phone, ''), COALESCE(address, ''), role, created_at`

func (r *repo) getUser(ctx context.Context, where string, arg any) (*orders.User, error) {
	var u orders.User
	var role string
	err := r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	u.Role = orders.Role(role)
	return &u, nil
}

func (r *repo) GetUser(ctx context.Context, id int64) (*orders.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

func (r *repo) GetUserByEmail(ctx context.Context, email string) (*orders.User, error) {
	return r.getUser(ctx, `email = $1`, email)
}

func (r *repo) InsertOrder(ctx context.Context, o orders.NewOrder) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_price, status)
		VALUES ($1, $2, $3)
		RETURNING id`, o.UserID, o.TotalPrice, string(o.Status)).Scan(&id)
	return id, errors.Wrap(err, "insert order")
}

func (r *repo) InsertOrderItem(ctx context.Context, it orders.NewOrderItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, it.OrderID, it.ProductID, it.Price, it.Quantity).Scan(&id)
	return id, errors.Wrap(err, "insert order item")
}

func (r *repo) GetOrderWithItems(ctx context.Context, orderID int64) (*orders.Order, error) {
	q := `SELECT id, user_id, total_price, status, created_at FROM orders WHERE id = $1`
	if r.inTx {
		// di dalam tx (update status oleh admin) kunci baris order-nya
		q += ` FOR UPDATE`
	}
	var o orders.Order
	var status string
	err := r.q.QueryRow(ctx, q, orderID).Scan(&o.ID, &o.UserID, &o.TotalPrice, &status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.NotFound("order")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o.Status = orders.Status(status)

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
	rows, err := r.q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.price, oi.quantity, p.title, COALESCE(p.image, '')
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	out := make(map[int64][]orders.OrderItem, len(orderIDs))
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Price, &it.Quantity, &it.Title, &it.Image); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, errors.Wrap(rows.Err(), "iterate order items")
}

func (r *repo) ListOrders(ctx context.Context, userID int64) ([]orders.Order, error) {
	q := `SELECT id, user_id, total_price, status, created_at FROM orders`
	var args []any
	if userID != 0 {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	out := make([]orders.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var o orders.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &status, &o.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		o.Status = orders.Status(status)
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
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
	ct, err := r.q.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(status))
	if err != nil {
		return errors.Wrap(err, "update status")
	}
	if ct.RowsAffected() == 0 {
		return orders.NotFound("order")
	}
	return nil
}

// DeleteOrder relies on ON DELETE CASCADE for order_items.
func (r *repo) DeleteOrder(ctx context.Context, orderID int64) (bool, error) {
	ct, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return false, errors.Wrap(err, "delete order")
	}
	return ct.RowsAffected() > 0, nil
}
