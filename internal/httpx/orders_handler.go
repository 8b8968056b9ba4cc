package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

const maxIdempotencyKey = 255

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKey {
		badRequest(w, "Idempotency-Key too long")
		return
	}
	claimed := false
	if key != "" && h.Idem != nil {
		orderID, ok, err := h.Idem.Claim(ctx, p.UserID, key)
		switch {
		case err != nil:
			// redis tidak tersedia: lanjut tanpa replay, DB tetap jadi kebenaran
			h.Log.WithError(err).Warn("idempotency claim failed, continuing without it")
		case ok:
			claimed = true
		case orderID > 0:
			o, err := h.Orders.GetOrder(ctx, p, orderID)
			if err != nil {
				writeError(w, r, h.Log, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		default:
			writeJSON(w, http.StatusConflict, errorBody{Error: "a request with this Idempotency-Key is in progress", Code: "IDEMPOTENCY_IN_PROGRESS"})
			return
		}
	}

	o, err := h.Placement.PlaceOrder(ctx, p.UserID)
	if err != nil {
		if claimed {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), p.UserID, key); rerr != nil {
				h.Log.WithError(rerr).Warn("release idempotency key")
			}
		}
		writeError(w, r, h.Log, err)
		return
	}
	if claimed {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), p.UserID, key, o.ID); err != nil {
			h.Log.WithError(err).WithField("order_id", o.ID).Warn("complete idempotency key")
		}
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := h.Orders.ListOrders(r.Context(), p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	p, _ := PrincipalFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	var (
		ver       int64
		cacheable bool
	)
	if h.Cache != nil {
		o, hit, err := h.Cache.Get(ctx, id)
		if err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("order cache get")
		}
		if hit {
			if !p.IsAdmin() && o.UserID != p.UserID {
				writeError(w, r, h.Log, orders.ErrForbidden)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
		// versi dibaca sebelum DB supaya PATCH/DELETE di tengah jalan membatalkan Put
		if ver, err = h.Cache.Version(ctx, id); err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("order cache version")
		} else {
			cacheable = true
		}
	}

	// 2) fallback DB
	o, err := h.Orders.GetOrder(ctx, p, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if cacheable {
		if err := h.Cache.Put(ctx, o, ver); err != nil {
			h.Log.WithError(err).WithField("order_id", id).Warn("order cache put")
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	var req updateStatusReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	to := orders.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	o, err := h.Orders.UpdateOrderStatus(r.Context(), id, to)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), id)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid order id")
		return
	}
	if err := h.Orders.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.invalidate(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invalidate(ctx context.Context, id int64) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, id); err != nil {
		h.Log.WithError(err).WithFields(log.Fields{"order_id": id}).Warn("order cache invalidate")
	}
}
