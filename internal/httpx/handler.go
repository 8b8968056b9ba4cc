package httpx

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// Idempotency: implementasi produksi adalah redisx.Idempotency.
type Idempotency interface {
	Claim(ctx context.Context, userID int64, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, userID int64, key string, orderID int64) error
	Release(ctx context.Context, userID int64, key string) error
}

// OrderCache: implementasi produksi adalah redisx.OrderCache.
// Put hanya menulis kalau Version belum berubah sejak dibaca (tidak ada Invalidate di tengah request).
type OrderCache interface {
	Get(ctx context.Context, id int64) (*orders.Order, bool, error)
	Version(ctx context.Context, id int64) (int64, error)
	Put(ctx context.Context, o *orders.Order, version int64) error
	Invalidate(ctx context.Context, id int64) error
}

// Handler wires the storefront services to HTTP. Idem and Cache are optional.
type Handler struct {
	Products  *orders.ProductService
	Cart      *orders.CartService
	Placement *orders.PlacementService
	Orders    *orders.OrderService
	Accounts  *orders.AccountService
	Idem      Idempotency
	Cache     OrderCache
	Secret    string
	TokenTTL  time.Duration
	Log       log.FieldLogger
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Post("/auth/admin/login", h.adminLogin)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.Secret))

		r.Get("/auth/me", h.me)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(orders.RoleUser, orders.RoleAdmin))
			r.Get("/cart", h.listCart)
			r.Post("/cart", h.addToCart)
			r.Delete("/cart", h.clearCart)
			r.Patch("/cart/{product_id}", h.updateCartLine)
			r.Delete("/cart/{product_id}", h.removeCartLine)
			r.Post("/orders", h.placeOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(orders.RoleAdmin))
			r.Patch("/orders/{id}", h.updateOrderStatus)
			r.Delete("/orders/{id}", h.deleteOrder)

			r.Post("/products", h.createProduct)
			r.Patch("/products/{id}", h.updateProduct)
			r.Delete("/products/{id}", h.deleteProduct)
			r.Put("/products/{id}/stock", h.setStock)
			r.Post("/products/{id}/restock", h.restock)
		})
	})
}
