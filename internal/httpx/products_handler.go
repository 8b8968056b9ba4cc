package httpx

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	p, err := h.Products.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createProductReq struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       int              `json:"stock"`
	Image       string           `json:"image"`
}

type stockReq struct {
	Stock *int `json:"stock"`
}

type restockReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Price == nil {
		badRequest(w, "price is required")
		return
	}
	p, err := h.Products.CreateProduct(r.Context(), orders.NewProduct{
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	var patch orders.ProductPatch
	if err := decode(r, &patch); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Products.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	var req stockReq
	if err := decode(r, &req); err != nil || req.Stock == nil {
		badRequest(w, "stock is required")
		return
	}
	p, err := h.Products.SetStock(r.Context(), id, *req.Stock)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	var req restockReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Products.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	if err := h.Products.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
