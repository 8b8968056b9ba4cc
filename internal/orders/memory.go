package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore adalah implementasi in-memory semua port storage, dipakai untuk
// test dan mode dev. Transaksi bekerja di atas salinan state lalu di-swap saat
// commit, jadi rollback benar-benar membuang semua perubahan.
type MemoryStore struct {
	mu  sync.RWMutex
	st  *memState
	now func() time.Time
}

type cartKey struct{ user, product int64 }

type memState struct {
	nextProductID int64
	nextOrderID   int64
	nextItemID    int64
	nextUserID    int64
	products      map[int64]Product
	cart          map[cartKey]int
	orders        map[int64]Order // tanpa Items
	items         map[int64][]OrderItem
	users         map[int64]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		st: &memState{
			nextProductID: 1,
			nextOrderID:   1,
			nextItemID:    1,
			nextUserID:    1,
			products:      map[int64]Product{},
			cart:          map[cartKey]int{},
			orders:        map[int64]Order{},
			items:         map[int64][]OrderItem{},
			users:         map[int64]User{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *memState) clone() *memState {
	c := *s
	c.products = make(map[int64]Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.cart = make(map[cartKey]int, len(s.cart))
	for k, v := range s.cart {
		c.cart[k] = v
	}
	c.orders = make(map[int64]Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.items = make(map[int64][]OrderItem, len(s.items))
	for k, v := range s.items {
		c.items[k] = append([]OrderItem(nil), v...)
	}
	c.users = make(map[int64]User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	return &c
}

// Stores returns non-transactional views; every call takes the store lock.
func (m *MemoryStore) Stores() Stores {
	v := &memView{m: m}
	return Stores{Carts: v, Products: v, Orders: v, Users: v}
}

// WithTransaction serialises transactions behind the write lock.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	v := &memView{m: m, tx: work}
	if err := fn(ctx, Stores{Carts: v, Products: v, Orders: v, Users: v}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = work
	return nil
}

// ---- seed & inspection helpers ----

func (m *MemoryStore) AddProduct(p Product) Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.st.nextProductID
	m.st.nextProductID++
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.st.products[p.ID] = p
	return p
}

func (m *MemoryStore) SetPrice(productID int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.st.products[productID]
	p.Price = price
	m.st.products[productID] = p
}

func (m *MemoryStore) SetStock(productID int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.st.products[productID]
	p.Stock = stock
	m.st.products[productID] = p
}

func (m *MemoryStore) Stock(productID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.products[productID].Stock
}

func (m *MemoryStore) CartSize(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.st.cart {
		if k.user == userID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.st.orders)
}

func (m *MemoryStore) ItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, its := range m.st.items {
		n += len(its)
	}
	return n
}

// ---- port implementations ----

type memView struct {
	m  *MemoryStore
	tx *memState // nil = di luar transaksi
}

var (
	_ CartStore      = (*memView)(nil)
	_ ProductCatalog = (*memView)(nil)
	_ OrderStore     = (*memView)(nil)
	_ UserStore      = (*memView)(nil)
	_ TxManager      = (*MemoryStore)(nil)
)

func (v *memView) read() (*memState, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.m.mu.RLock()
	return v.m.st, v.m.mu.RUnlock
}

func (v *memView) write() (*memState, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.m.mu.Lock()
	return v.m.st, v.m.mu.Unlock
}

func (v *memView) ListLinesWithProductInfo(_ context.Context, userID int64) ([]CartLine, error) {
	st, done := v.read()
	defer done()
	out := make([]CartLine, 0)
	for k, qty := range st.cart {
		if k.user != userID {
			continue
		}
		out = append(out, joinLine(st, k, qty))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (v *memView) GetLine(_ context.Context, userID, productID int64) (*CartLine, error) {
	st, done := v.read()
	defer done()
	k := cartKey{userID, productID}
	qty, ok := st.cart[k]
	if !ok {
		return nil, NotFound("cart item")
	}
	l := joinLine(st, k, qty)
	return &l, nil
}

func joinLine(st *memState, k cartKey, qty int) CartLine {
	p := st.products[k.product]
	return CartLine{
		UserID:    k.user,
		ProductID: k.product,
		Quantity:  qty,
		Price:     p.Price,
		Stock:     p.Stock,
		Title:     p.Title,
		Image:     p.Image,
	}
}

func (v *memView) UpsertLine(_ context.Context, userID, productID int64, qty int) error {
	st, done := v.write()
	defer done()
	if _, ok := st.products[productID]; !ok {
		return NotFound("product")
	}
	st.cart[cartKey{userID, productID}] = qty
	return nil
}

func (v *memView) DeleteLine(_ context.Context, userID, productID int64) (bool, error) {
	st, done := v.write()
	defer done()
	k := cartKey{userID, productID}
	if _, ok := st.cart[k]; !ok {
		return false, nil
	}
	delete(st.cart, k)
	return true, nil
}

func (v *memView) DeleteAllLines(_ context.Context, userID int64) error {
	st, done := v.write()
	defer done()
	for k := range st.cart {
		if k.user == userID {
			delete(st.cart, k)
		}
	}
	return nil
}

func (v *memView) DeleteLines(_ context.Context, userID int64, productIDs []int64) error {
	st, done := v.write()
	defer done()
	for _, id := range productIDs {
		delete(st.cart, cartKey{userID, id})
	}
	return nil
}

func (v *memView) GetProduct(_ context.Context, id int64) (*Product, error) {
	st, done := v.read()
	defer done()
	p, ok := st.products[id]
	if !ok {
		return nil, NotFound("product")
	}
	return &p, nil
}

func (v *memView) ListProducts(_ context.Context) ([]Product, error) {
	st, done := v.read()
	defer done()
	out := make([]Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *memView) StockLevels(_ context.Context, ids []int64) (map[int64]int, error) {
	st, done := v.read()
	defer done()
	out := make(map[int64]int, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out[id] = p.Stock
		}
	}
	return out, nil
}

func (v *memView) DecrementStock(_ context.Context, productID int64, qty int) (int64, error) {
	st, done := v.write()
	defer done()
	p, ok := st.products[productID]
	if !ok || p.Stock < qty {
		return 0, nil
	}
	p.Stock -= qty
	st.products[productID] = p
	return 1, nil
}

func (v *memView) InsertProduct(_ context.Context, np NewProduct) (int64, error) {
	st, done := v.write()
	defer done()
	id := st.nextProductID
	st.nextProductID++
	st.products[id] = Product{
		ID:          id,
		Title:       np.Title,
		Description: np.Description,
		Price:       np.Price,
		Stock:       np.Stock,
		Image:       np.Image,
		CreatedAt:   v.m.now(),
	}
	return id, nil
}

func (v *memView) UpdateProduct(_ context.Context, p Product) error {
	st, done := v.write()
	defer done()
	cur, ok := st.products[p.ID]
	if !ok {
		return NotFound("product")
	}
	cur.Title, cur.Description, cur.Price, cur.Image = p.Title, p.Description, p.Price, p.Image
	st.products[p.ID] = cur
	return nil
}

func (v *memView) SetStock(_ context.Context, productID int64, stock int) error {
	st, done := v.write()
	defer done()
	p, ok := st.products[productID]
	if !ok {
		return NotFound("product")
	}
	p.Stock = stock
	st.products[productID] = p
	return nil
}

func (v *memView) IncrementStock(_ context.Context, productID int64, qty int) error {
	st, done := v.write()
	defer done()
	p, ok := st.products[productID]
	if !ok {
		return NotFound("product")
	}
	p.Stock += qty
	st.products[productID] = p
	return nil
}

// DeleteProduct meniru FK: order_items RESTRICT, cart_items CASCADE.
func (v *memView) DeleteProduct(_ context.Context, productID int64) (bool, error) {
	st, done := v.write()
	defer done()
	if _, ok := st.products[productID]; !ok {
		return false, nil
	}
	for _, its := range st.items {
		for _, it := range its {
			if it.ProductID == productID {
				return false, ErrProductInUse
			}
		}
	}
	for k := range st.cart {
		if k.product == productID {
			delete(st.cart, k)
		}
	}
	delete(st.products, productID)
	return true, nil
}

func (v *memView) InsertUser(_ context.Context, nu NewUser) (int64, error) {
	st, done := v.write()
	defer done()
	for _, u := range st.users {
		if u.Email == nu.Email {
			return 0, ErrEmailTaken
		}
	}
	id := st.nextUserID
	st.nextUserID++
	st.users[id] = User{
		ID:           id,
		Name:         nu.Name,
		Email:        nu.Email,
		Phone:        nu.Phone,
		Address:      nu.Address,
		Role:         nu.Role,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    v.m.now(),
	}
	return id, nil
}

func (v *memView) GetUser(_ context.Context, id int64) (*User, error) {
	st, done := v.read()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return nil, NotFound("user")
	}
	return &u, nil
}

func (v *memView) GetUserByEmail(_ context.Context, email string) (*User, error) {
	st, done := v.read()
	defer done()
	for _, u := range st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, NotFound("user")
}

func (v *memView) InsertOrder(_ context.Context, o NewOrder) (int64, error) {
	st, done := v.write()
	defer done()
	id := st.nextOrderID
	st.nextOrderID++
	st.orders[id] = Order{
		ID:         id,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		CreatedAt:  v.m.now(),
	}
	return id, nil
}

func (v *memView) InsertOrderItem(_ context.Context, it NewOrderItem) (int64, error) {
	st, done := v.write()
	defer done()
	if _, ok := st.orders[it.OrderID]; !ok {
		return 0, NotFound("order")
	}
	id := st.nextItemID
	st.nextItemID++
	st.items[it.OrderID] = append(st.items[it.OrderID], OrderItem{
		ID:        id,
		OrderID:   it.OrderID,
		ProductID: it.ProductID,
		Price:     it.Price,
		Quantity:  it.Quantity,
	})
	return id, nil
}

func (v *memView) GetOrderWithItems(_ context.Context, orderID int64) (*Order, error) {
	st, done := v.read()
	defer done()
	o, ok := st.orders[orderID]
	if !ok {
		return nil, NotFound("order")
	}
	o.Items = joinItems(st, orderID)
	return &o, nil
}

func joinItems(st *memState, orderID int64) []OrderItem {
	items := make([]OrderItem, 0, len(st.items[orderID]))
	for _, it := range st.items[orderID] {
		p := st.products[it.ProductID]
		it.Title, it.Image = p.Title, p.Image
		items = append(items, it)
	}
	return items
}

func (v *memView) ListOrders(_ context.Context, userID int64) ([]Order, error) {
	st, done := v.read()
	defer done()
	out := make([]Order, 0)
	for _, o := range st.orders {
		if userID != 0 && o.UserID != userID {
			continue
		}
		o.Items = joinItems(st, o.ID)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v *memView) UpdateStatus(_ context.Context, orderID int64, status Status) error {
	st, done := v.write()
	defer done()
	o, ok := st.orders[orderID]
	if !ok {
		return NotFound("order")
	}
	o.Status = status
	st.orders[orderID] = o
	return nil
}

func (v *memView) DeleteOrder(_ context.Context, orderID int64) (bool, error) {
	st, done := v.write()
	defer done()
	if _, ok := st.orders[orderID]; !ok {
		return false, nil
	}
	delete(st.items, orderID)
	delete(st.orders, orderID)
	return true, nil
}
