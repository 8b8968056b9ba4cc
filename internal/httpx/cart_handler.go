package httpx

import (
	"net/http"
)

type addToCartReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateCartReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	lines, err := h.Cart.ListCart(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID <= 0 {
		badRequest(w, "product_id is required")
		return
	}
	p, _ := PrincipalFrom(r.Context())
	line, err := h.Cart.AddToCart(r.Context(), p.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "product_id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	var req updateCartReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, _ := PrincipalFrom(r.Context())
	line, err := h.Cart.UpdateCartLine(r.Context(), p.UserID, productID, req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "product_id")
	if !ok {
		badRequest(w, "invalid product id")
		return
	}
	p, _ := PrincipalFrom(r.Context())
	if err := h.Cart.RemoveCartLine(r.Context(), p.UserID, productID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if err := h.Cart.ClearCart(r.Context(), p.UserID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
