package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	User        *orders.User `json:"user,omitempty"`
	AdminUser   *orders.User `json:"admin_user,omitempty"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
}

// issue menerbitkan token untuk u; admin login menaruh user di admin_user.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, code int, u *orders.User, asAdmin bool) {
	tok, err := auth.Issue(h.Secret, u.ID, u.Role, h.TokenTTL)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	resp := tokenResp{AccessToken: tok, TokenType: "Bearer", ExpiresIn: int64(h.tokenTTL().Seconds())}
	if asAdmin {
		resp.AdminUser = u
	} else {
		resp.User = u
	}
	writeJSON(w, code, resp)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req orders.Registration
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	u, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u, false)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, false)
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, true)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, requireAdmin bool) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w, "email and password are required")
		return
	}
	u, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password, requireAdmin)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u, requireAdmin)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	u, err := h.Accounts.Me(r.Context(), p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*orders.User{"user": u})
}

func (h *Handler) tokenTTL() time.Duration {
	if h.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return h.TokenTTL
}
