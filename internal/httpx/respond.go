package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID int64  `json:"product_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error classification to an HTTP status.
func statusFor(err error) int {
	switch orders.KindOf(err) {
	case orders.KindEmptyCart, orders.KindInsufficientStock, orders.KindInvalidInput:
		return http.StatusBadRequest
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindForbidden:
		return http.StatusForbidden
	case orders.KindInvalidTransition, orders.KindConflict:
		return http.StatusConflict
	case orders.KindBadCredentials:
		return http.StatusUnauthorized
	case orders.KindCommitFailed:
		// kalah race stok: client boleh coba lagi
		if errors.Is(err, orders.ErrStockConflict) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error","code","product_id"?}. Detail error yang
// tidak terklasifikasi (atau penyebab commit gagal) hanya masuk log.
func writeError(w http.ResponseWriter, r *http.Request, logger log.FieldLogger, err error) {
	code := statusFor(err)
	body := errorBody{Error: "internal server error", Code: "INTERNAL"}
	var e *orders.Error
	if errors.As(err, &e) {
		body = errorBody{Error: e.Msg, Code: string(e.Kind), ProductID: e.ProductID}
		if body.Error == "" {
			body.Error = string(e.Kind)
		}
	}
	if code >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(log.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeJSON(w, code, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: string(orders.KindInvalidInput)})
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
